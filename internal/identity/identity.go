// Package identity bootstraps the anonymous shopper identity from a small
// key/value storage, creating it once on first use.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

// Storage is the persistent key/value store the identity lives in.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Provider hands out the identity kept in its storage.
type Provider struct {
	storage Storage
	logger  *slog.Logger

	mu     sync.Mutex
	cached *domain.UserIdentity
}

// NewProvider creates a provider over storage.
func NewProvider(storage Storage, logger *slog.Logger) *Provider {
	return &Provider{storage: storage, logger: logger}
}

// Identity returns the stored identity, generating and persisting one when
// the storage has none. Concurrent first calls observe the same token.
func (p *Provider) Identity(ctx context.Context) (domain.UserIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached, nil
	}

	value, ok, err := p.storage.Get(ctx, domain.IdentityKey)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("read identity: %w", err)
	}

	if ok && domain.IsValidIdentity(value) {
		id := domain.UserIdentity{ID: value}
		p.cached = &id
		return id, nil
	}

	if ok {
		p.logger.WarnContext(ctx, "discarding malformed identity token", slog.Int("length", len(value)))
	}

	id := domain.NewUserIdentity()
	if err := p.storage.Set(ctx, domain.IdentityKey, id.ID); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("persist identity: %w", err)
	}
	p.logger.DebugContext(ctx, "identity created", slog.String("identity", id.ID))

	p.cached = &id
	return id, nil
}
