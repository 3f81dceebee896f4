// Package memory implements remote.Store in process memory for development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
)

type entry struct {
	product   string
	createdAt time.Time
	seq       int
}

// Store is an in-memory remote store. Unknown products are created on first
// use with a null counter.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]map[string]entry // user -> product -> entry
	counters map[string]*int
	seq      int
	now      func() time.Time
}

// NewStore creates an empty store, optionally seeding products with a null counter.
func NewStore(products ...string) *Store {
	s := &Store{
		entries:  make(map[string]map[string]entry),
		counters: make(map[string]*int),
		now:      time.Now,
	}
	for _, p := range products {
		s.counters[p] = nil
	}
	return s
}

func (s *Store) ListLiked(_ context.Context, user string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]entry, 0, len(s.entries[user]))
	for _, e := range s.entries[user] {
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	ids := make([]string, len(rows))
	for i, e := range rows {
		ids[i] = e.product
	}
	return ids, nil
}

func (s *Store) InsertEntry(_ context.Context, user, product string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProduct, ok := s.entries[user]
	if !ok {
		byProduct = make(map[string]entry)
		s.entries[user] = byProduct
	}
	if _, dup := byProduct[product]; dup {
		return apperrors.AlreadyExists("wishlist entry", "jewellery_id", product)
	}
	if _, known := s.counters[product]; !known {
		s.counters[product] = nil
	}
	s.seq++
	byProduct[product] = entry{product: product, createdAt: s.now(), seq: s.seq}
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, user, product string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[user][product]; !ok {
		return apperrors.NotFound("wishlist entry", product)
	}
	delete(s.entries[user], product)
	return nil
}

func (s *Store) LikeCount(_ context.Context, product string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[product]
	if !ok {
		return 0, apperrors.NotFound("jewellery", product)
	}
	if c == nil {
		return 0, nil
	}
	return *c, nil
}

func (s *Store) SetLikeCount(_ context.Context, product string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.counters[product]; !ok {
		return apperrors.NotFound("jewellery", product)
	}
	s.counters[product] = &n
	return nil
}

func (s *Store) CountEntries(_ context.Context, product string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, byProduct := range s.entries {
		if _, ok := byProduct[product]; ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// HasEntry reports whether the (user, product) row exists.
func (s *Store) HasEntry(user, product string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[user][product]
	return ok
}
