package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelier-jewellery/storefront/internal/session"
	"github.com/atelier-jewellery/storefront/pkg/health"
	"github.com/atelier-jewellery/storefront/pkg/middleware"
)

// RouterConfig holds the HTTP-facing settings of the router.
type RouterConfig struct {
	ServiceName    string
	CookieSecure   bool
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all wishlist routes registered.
func NewRouter(
	sessions *session.Registry,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		ExposedHeaders: []string{"X-Correlation-ID"},
	}))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Wishlist API endpoints
	wishlistHandler := NewWishlistHandler(sessions, logger)

	r.Route("/api/v1/wishlist", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Identity(cfg.CookieSecure, logger))
		r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

		r.Get("/", wishlistHandler.GetWishlist)
		r.Post("/toggle", wishlistHandler.Toggle)

		r.Get("/{productId}", wishlistHandler.GetItem)
		r.Put("/{productId}", wishlistHandler.AddItem)
		r.Delete("/{productId}", wishlistHandler.RemoveItem)

		r.Post("/counters/{productId}/reconcile", wishlistHandler.ReconcileCounter)
	})

	return r
}
