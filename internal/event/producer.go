package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	pkgkafka "github.com/atelier-jewellery/storefront/pkg/kafka"
	"github.com/atelier-jewellery/storefront/pkg/logger"
)

// Kafka topic constants for wishlist domain events.
const (
	TopicItemAdded         = "atelier.wishlist.item_added"
	TopicItemRemoved       = "atelier.wishlist.item_removed"
	TopicCounterReconciled = "atelier.wishlist.counter_reconciled"
)

// Aggregate type constant. Events are keyed by product so that a product's
// counter history stays ordered on one partition.
const AggregateTypeProduct = "product"

// Source identifier for events originating from the wishlist service.
const SourceWishlistService = "wishlist-service"

// ItemData is the payload for item_added and item_removed events.
type ItemData struct {
	UserIdentifier string    `json:"user_identifier"`
	ProductID      string    `json:"jewellery_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// CounterReconciledData is the payload for a counter_reconciled event.
type CounterReconciledData struct {
	ProductID string `json:"jewellery_id"`
	Previous  int    `json:"previous"`
	Current   int    `json:"current"`
}

// Producer publishes wishlist domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the wishlist service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishItemAdded publishes an item_added event.
func (p *Producer) PublishItemAdded(ctx context.Context, user, productID string) error {
	return p.publishItem(ctx, TopicItemAdded, user, productID)
}

// PublishItemRemoved publishes an item_removed event.
func (p *Producer) PublishItemRemoved(ctx context.Context, user, productID string) error {
	return p.publishItem(ctx, TopicItemRemoved, user, productID)
}

func (p *Producer) publishItem(ctx context.Context, topic, user, productID string) error {
	data := ItemData{
		UserIdentifier: user,
		ProductID:      productID,
		OccurredAt:     time.Now().UTC(),
	}

	if err := p.publish(ctx, topic, productID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published wishlist event",
		slog.String("topic", topic),
		slog.String("product_id", productID),
	)
	return nil
}

// PublishCounterReconciled publishes a counter_reconciled event.
func (p *Producer) PublishCounterReconciled(ctx context.Context, productID string, previous, current int) error {
	data := CounterReconciledData{
		ProductID: productID,
		Previous:  previous,
		Current:   current,
	}

	if err := p.publish(ctx, TopicCounterReconciled, productID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published counter_reconciled event",
		slog.String("product_id", productID),
		slog.Int("previous", previous),
		slog.Int("current", current),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, productID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, productID, AggregateTypeProduct, SourceWishlistService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("identity", logger.IdentityFromContext(ctx))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt.WithMetadata("trace_id", sc.TraceID().String())
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
