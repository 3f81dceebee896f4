package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/atelier-jewellery/storefront/internal/identity"
	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
	"github.com/atelier-jewellery/storefront/pkg/httputil"
	"github.com/atelier-jewellery/storefront/pkg/logger"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// identityKey is the context key for the shopper identity.
const identityKey contextKey = "identity"

// Identity is middleware that resolves the anonymous shopper identity from
// its long-lived cookie, issuing the cookie on the first visit. The identity
// is stored in the request context and attached to the request logger.
func Identity(secure bool, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provider := identity.NewProvider(identity.NewCookieStorage(w, r, secure), l)
			id, err := provider.Identity(r.Context())
			if err != nil {
				httputil.WriteError(w, r, apperrors.Internal(err), l)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id.ID)
			ctx = logger.WithIdentity(ctx, id.ID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("identity", id.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext extracts the shopper identity from the request context.
func identityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok && id != ""
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// visitor tracks a rate limiter per identity.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore manages per-identity rate limiters. Stale entries are evicted
// on access once every ttl.
type visitorStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	nowFunc   func() time.Time // injectable clock for testing
}

// newVisitorStore creates a store with the given rate parameters and TTL.
func newVisitorStore(rps float64, burst int, ttl time.Duration) *visitorStore {
	return &visitorStore{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

// getVisitor returns (or creates) the limiter for key.
func (s *visitorStore) getVisitor(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if now.Sub(s.lastSweep) > s.ttl {
		s.cleanupLocked(now)
		s.lastSweep = now
	}

	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// cleanupLocked evicts all visitors whose lastSeen is older than the TTL.
func (s *visitorStore) cleanupLocked(now time.Time) {
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, key)
		}
	}
}

// len returns the number of tracked visitors (used in tests).
func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit returns middleware that enforces a per-identity token bucket on
// wishlist mutations. Reads pass through. Must run after Identity.
func RateLimit(rps float64, burst int, l *slog.Logger) func(http.Handler) http.Handler {
	const visitorTTL = 10 * time.Minute
	store := newVisitorStore(rps, burst, visitorTTL)
	return rateLimit(store, l)
}

func rateLimit(store *visitorStore, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key, ok := identityFromContext(r.Context())
			if !ok {
				key = r.RemoteAddr
			}

			if !store.getVisitor(key).Allow() {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("identity", key),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many wishlist changes, slow down"), l)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
