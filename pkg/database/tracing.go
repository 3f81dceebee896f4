package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/atelier-jewellery/storefront/pkg/database"

// QueryTracer opens a client span per statement and, when a threshold is
// set, logs statements slower than it.
type QueryTracer struct {
	tracer    trace.Tracer
	threshold time.Duration
	logger    *slog.Logger
}

// NewQueryTracer creates a tracer on the global provider. A zero threshold
// or nil logger disables slow query logging.
func NewQueryTracer(threshold time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{
		tracer:    otel.Tracer(tracerName),
		threshold: threshold,
		logger:    logger,
	}
}

// WithTracer returns a copy that records spans on t.
func (q *QueryTracer) WithTracer(t trace.Tracer) *QueryTracer {
	c := *q
	c.tracer = t
	return &c
}

// Start begins a span for one statement. The returned function ends it and
// must be called exactly once:
//
//	ctx, end := q.Start(ctx, "ListLiked", query)
//	defer func() { end(err) }()
func (q *QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := q.tracer.Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if q.threshold <= 0 || q.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= q.threshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			q.logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}
