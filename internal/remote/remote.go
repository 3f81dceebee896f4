// Package remote defines the backing store the wishlist synchronizes with:
// a wishlists table of (identity, product) rows and a denormalized like
// counter on each product.
package remote

import "context"

// Table and column names shared by the adapters.
const (
	TableWishlists = "wishlists"
	TableJewellery = "jewellery"

	ColUserIdentifier = "user_identifier"
	ColJewelleryID    = "jewellery_id"
	ColWishlistCount  = "wishlist_count"
)

// Store is the remote wishlist store.
type Store interface {
	// ListLiked returns the product ids the identity has liked.
	ListLiked(ctx context.Context, user string) ([]string, error)

	// InsertEntry creates the (user, product) row. A duplicate pair fails
	// with an error matching apperrors.ErrAlreadyExists.
	InsertEntry(ctx context.Context, user, product string) error

	// DeleteEntry removes the (user, product) row. When no row matched it
	// fails with an error matching apperrors.ErrNotFound.
	DeleteEntry(ctx context.Context, user, product string) error

	// LikeCount reads the product's counter; a null counter reads as 0.
	LikeCount(ctx context.Context, product string) (int, error)

	// SetLikeCount overwrites the product's counter.
	SetLikeCount(ctx context.Context, product string, n int) error

	// CountEntries counts the wishlist rows referencing product.
	CountEntries(ctx context.Context, product string) (int, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
