package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInFlight is returned when a mutation for the same product is already
// running for the identity. The call was dropped without touching anything.
var ErrInFlight = errors.New("wishlist operation already in flight")

// WishlistEntry is one (identity, product) row in the wishlists table. Its
// presence is the only source of truth for "liked".
type WishlistEntry struct {
	UserIdentifier string    `json:"user_identifier"`
	ProductID      string    `json:"jewellery_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProductLikeCounter is the denormalized like count stored on a product.
type ProductLikeCounter struct {
	ProductID string `json:"id"`
	Count     int    `json:"wishlist_count"`
}

// Op is a wishlist mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Result is what every mutation reports back to its caller.
type Result struct {
	ProductID string `json:"product_id"`
	Op        Op     `json:"op"`
	// Liked is the local state of the product once the call settled.
	Liked bool `json:"liked"`
	// Count is the size of the liked set once the call settled.
	Count int   `json:"count"`
	Err   error `json:"-"`
}

// OK reports whether the mutation was applied (or already held remotely).
func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %v", r.Op, r.ProductID, r.Err)
	}
	return fmt.Sprintf("%s %s: liked=%t count=%d", r.Op, r.ProductID, r.Liked, r.Count)
}

// ClampCount applies delta to a counter value, never going below zero.
// A missing value is treated as zero.
func ClampCount(current *int, delta int) int {
	n := delta
	if current != nil {
		n += *current
	}
	return max(0, n)
}
