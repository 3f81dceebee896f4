// Package session keeps one wishlist context per identity: its store, the
// widget board it projects onto and its pending toasts.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atelier-jewellery/storefront/internal/guard"
	"github.com/atelier-jewellery/storefront/internal/notify"
	"github.com/atelier-jewellery/storefront/internal/projection"
	"github.com/atelier-jewellery/storefront/internal/remote"
	"github.com/atelier-jewellery/storefront/internal/wishlist"
)

// DefaultIdleTTL is how long an untouched session is kept in memory.
const DefaultIdleTTL = 30 * time.Minute

// Session is the wishlist context of one identity. Board is the store's own
// surface; HTTP requests project onto boards of their own.
type Session struct {
	Identity string
	Store    *wishlist.Store
	Board    *projection.Board
	Toasts   *notify.Toasts

	loadMu   sync.Mutex
	loaded   bool
	lastSeen atomic.Int64
}

// load fills the store from the remote until one load succeeds. A failed
// attempt is retried on the next access.
func (s *Session) load(ctx context.Context) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.loaded {
		return
	}
	// Load errors are logged by the store; the wishlist stays as it was.
	s.loaded = s.Store.Initialize(ctx) == nil
}

// Loaded reports whether the session holds the remote wishlist.
func (s *Session) Loaded() bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.loaded
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last accessed.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Config holds the dependencies shared by every session.
type Config struct {
	Remote  remote.Store
	Guard   guard.Guard
	Events  wishlist.Events
	Metrics *wishlist.Metrics
	IdleTTL time.Duration
}

// Registry creates sessions on first access and evicts idle ones.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for identity, creating it on first access. The
// wishlist is loaded from the remote store until a load succeeds; a failed
// load leaves it empty for this access only. The load is not cancelled with
// ctx.
func (r *Registry) Get(ctx context.Context, identity string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[identity]
	if !ok {
		s = r.newSession(identity)
		r.sessions[identity] = s
	}
	s.touch(r.now())
	r.mu.Unlock()

	s.load(context.WithoutCancel(ctx))
	return s
}

func (r *Registry) newSession(identity string) *Session {
	board := projection.NewBoard(true)
	toasts := notify.NewToasts()

	opts := []wishlist.Option{
		wishlist.WithMetrics(r.cfg.Metrics),
		wishlist.WithClock(r.now),
	}
	if r.cfg.Events != nil {
		opts = append(opts, wishlist.WithEvents(r.cfg.Events))
	}

	return &Session{
		Identity: identity,
		Board:    board,
		Toasts:   toasts,
		Store: wishlist.New(identity, r.cfg.Remote, r.cfg.Guard, board,
			notify.Multi{toasts, notify.NewLogNotifier(r.logger)}, r.logger, opts...),
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed. The next access of an evicted identity reloads it.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) && len(s.Store.Drifted()) == 0 {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("idle sessions evicted", slog.Int("count", removed))
	}
	return removed
}

// ReconcileDrifted repairs drifted like counters across all sessions.
func (r *Registry) ReconcileDrifted(ctx context.Context) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, s := range r.All() {
		n, err := s.Store.ReconcileDrifted(ctx)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// Run sweeps idle sessions and reconciles drifted counters every interval
// until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.ReconcileDrifted(ctx)
			if err != nil {
				r.logger.WarnContext(ctx, "counter reconciliation incomplete",
					slog.Int("reconciled", n),
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				r.logger.InfoContext(ctx, "drifted counters reconciled", slog.Int("count", n))
			}
			r.Sweep()
		}
	}
}
