// Package guard enforces at most one in-flight wishlist mutation per
// (identity, product). Overlapping calls are dropped with domain.ErrInFlight.
package guard

import (
	"context"
	"sync"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

// Release frees a held slot. Calling it more than once is a no-op.
type Release func()

// Guard hands out per-key slots.
type Guard interface {
	// Acquire takes the slot for (user, product) or fails with
	// domain.ErrInFlight when it is already held.
	Acquire(ctx context.Context, user, product string) (Release, error)
}

// Key is the slot name for (user, product).
func Key(user, product string) string {
	return user + ":" + product
}

// Local is an in-process guard.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal creates an empty in-process guard.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// Acquire implements Guard.
func (g *Local) Acquire(_ context.Context, user, product string) (Release, error) {
	key := Key(user, product)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, domain.ErrInFlight
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports how many slots are taken.
func (g *Local) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
