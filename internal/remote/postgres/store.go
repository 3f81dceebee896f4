// Package postgres implements remote.Store directly against PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atelier-jewellery/storefront/pkg/database"
	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store implements remote.Store using PostgreSQL.
type Store struct {
	db    database.DBTX
	trace *database.QueryTracer
}

// Option configures a Store.
type Option func(*Store)

// WithQueryTracer traces every statement through q.
func WithQueryTracer(q *database.QueryTracer) Option {
	return func(s *Store) { s.trace = q }
}

// NewStore creates a PostgreSQL-backed remote store.
func NewStore(db database.DBTX, opts ...Option) *Store {
	s := &Store{db: db, trace: database.NewQueryTracer(0, nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListLiked returns the identity's liked products, oldest first.
func (s *Store) ListLiked(ctx context.Context, user string) (ids []string, err error) {
	query := `
		SELECT jewellery_id
		FROM wishlists
		WHERE user_identifier = $1
		ORDER BY created_at, jewellery_id`

	ctx, end := s.trace.Start(ctx, "ListLiked", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}

	ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan wishlist rows: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// InsertEntry adds the (user, product) row.
func (s *Store) InsertEntry(ctx context.Context, user, product string) (err error) {
	query := `INSERT INTO wishlists (user_identifier, jewellery_id) VALUES ($1, $2)`

	ctx, end := s.trace.Start(ctx, "InsertEntry", query)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, query, user, product); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return apperrors.AlreadyExists("wishlist entry", "jewellery_id", product)
			case pgForeignKeyViolation:
				return apperrors.NotFound("jewellery", product)
			}
		}
		return fmt.Errorf("insert wishlist entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the (user, product) row.
func (s *Store) DeleteEntry(ctx context.Context, user, product string) (err error) {
	query := `DELETE FROM wishlists WHERE user_identifier = $1 AND jewellery_id = $2`

	ctx, end := s.trace.Start(ctx, "DeleteEntry", query)
	defer func() { end(err) }()

	ct, err := s.db.Exec(ctx, query, user, product)
	if err != nil {
		return fmt.Errorf("delete wishlist entry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("wishlist entry", product)
	}
	return nil
}

// LikeCount reads jewellery.wishlist_count.
func (s *Store) LikeCount(ctx context.Context, product string) (_ int, err error) {
	query := `SELECT wishlist_count FROM jewellery WHERE id = $1`

	ctx, end := s.trace.Start(ctx, "LikeCount", query)
	defer func() { end(err) }()

	var count *int
	if err = s.db.QueryRow(ctx, query, product).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("jewellery", product)
		}
		return 0, fmt.Errorf("read like count: %w", err)
	}
	if count == nil {
		return 0, nil
	}
	return *count, nil
}

// SetLikeCount overwrites jewellery.wishlist_count.
func (s *Store) SetLikeCount(ctx context.Context, product string, n int) (err error) {
	query := `UPDATE jewellery SET wishlist_count = $2 WHERE id = $1`

	ctx, end := s.trace.Start(ctx, "SetLikeCount", query)
	defer func() { end(err) }()

	ct, err := s.db.Exec(ctx, query, product, n)
	if err != nil {
		return fmt.Errorf("update like count: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("jewellery", product)
	}
	return nil
}

// CountEntries counts the wishlist rows for product.
func (s *Store) CountEntries(ctx context.Context, product string) (n int, err error) {
	query := `SELECT COUNT(*) FROM wishlists WHERE jewellery_id = $1`

	ctx, end := s.trace.Start(ctx, "CountEntries", query)
	defer func() { end(err) }()

	if err = s.db.QueryRow(ctx, query, product).Scan(&n); err != nil {
		return 0, fmt.Errorf("count wishlist entries: %w", err)
	}
	return n, nil
}

// Ping runs a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}
