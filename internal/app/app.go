package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atelier-jewellery/storefront/internal/config"
	"github.com/atelier-jewellery/storefront/internal/event"
	handler "github.com/atelier-jewellery/storefront/internal/handler/http"
	"github.com/atelier-jewellery/storefront/internal/session"
	"github.com/atelier-jewellery/storefront/internal/wishlist"
	"github.com/atelier-jewellery/storefront/pkg/health"
	pkgkafka "github.com/atelier-jewellery/storefront/pkg/kafka"
	"github.com/atelier-jewellery/storefront/pkg/tracing"
)

// ServiceName identifies the server in logs, traces and events.
const ServiceName = "wishlist-service"

// Version is set at build time.
var Version = "dev"

// App wires together all dependencies and runs the wishlist service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	backends       *Backends
	producer       *pkgkafka.Producer
	sessions       *session.Registry
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// reg receives the service metrics; pass prometheus.DefaultRegisterer to
// expose them on /metrics.
func NewApp(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName, Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Remote store and in-flight guard.
	backends, err := OpenBackends(ctx, cfg, reg, logger)
	if err != nil {
		_ = tracerShutdown(ctx)
		return nil, err
	}

	// Health checks.
	healthHandler := health.NewHandler(3 * time.Second)
	healthHandler.Register("remote", backends.Ping)
	if cfg.Guard == config.GuardRedis {
		healthHandler.Register("redis", backends.PingRedis)
	}

	// Kafka producer, only when brokers are configured.
	sessionCfg := session.Config{
		Remote:  backends.Remote,
		Guard:   backends.Guard,
		Metrics: wishlist.NewMetrics(reg),
		IdleTTL: cfg.SessionIdleTTL,
	}
	var producer *pkgkafka.Producer
	if brokers := nonEmpty(cfg.KafkaBrokers); len(brokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(brokers), logger).
			WithMetrics(pkgkafka.NewProducerMetrics(reg))
		sessionCfg.Events = event.NewProducer(producer, logger)
		healthHandler.Register("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", brokers))
	} else {
		logger.Info("no kafka brokers configured, wishlist events disabled")
	}

	sessions := session.NewRegistry(sessionCfg, logger)

	// HTTP router.
	router := handler.NewRouter(sessions, healthHandler, handler.RouterConfig{
		ServiceName:    ServiceName,
		CookieSecure:   cfg.CookieSecure,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		backends:       backends,
		producer:       producer,
		sessions:       sessions,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the counter reconciler, and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		a.sessions.Run(workerCtx, a.cfg.ReconcileInterval)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopWorker()
	<-workerDone

	if err := a.Shutdown(); err != nil {
		return err
	}
	return runErr
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Repair counters that drifted during this run before going away.
	if n, err := a.sessions.ReconcileDrifted(shutdownCtx); err != nil {
		a.logger.Warn("final counter reconciliation incomplete",
			slog.Int("reconciled", n),
			slog.String("error", err.Error()),
		)
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	a.backends.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
