// Package postgrest implements remote.Store over the Supabase/PostgREST HTTP API.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/atelier-jewellery/storefront/internal/remote"
	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
	"github.com/atelier-jewellery/storefront/pkg/httpclient"
)

const remoteName = "postgrest"

// Config points the store at a PostgREST endpoint.
type Config struct {
	// BaseURL is the project URL; /rest/v1 is appended.
	BaseURL string
	// APIKey is sent as the apikey header and as the bearer token.
	APIKey string
}

// Store implements remote.Store over PostgREST.
type Store struct {
	client httpclient.Doer
	base   string
	apiKey string
}

// NewStore creates a PostgREST-backed store issuing requests through client.
func NewStore(cfg Config, client httpclient.Doer) *Store {
	return &Store{
		client: client,
		base:   strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1/",
		apiKey: cfg.APIKey,
	}
}

func eq(v string) string {
	return "eq." + v
}

func (s *Store) newRequest(ctx context.Context, method, table string, q url.Values, body any) (*http.Request, error) {
	u := s.base + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", table, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, table, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (s *Store) do(ctx context.Context, req *http.Request, out any) (*http.Response, error) {
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Upstream(remoteName+" request failed", err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, remoteName)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, apperrors.Upstream(remoteName+" returned an unreadable body", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp, nil
}

type likedRow struct {
	JewelleryID string `json:"jewellery_id"`
}

type counterRow struct {
	WishlistCount *int `json:"wishlist_count"`
}

// ListLiked selects the identity's rows from the wishlists table.
func (s *Store) ListLiked(ctx context.Context, user string) ([]string, error) {
	q := url.Values{}
	q.Set("select", remote.ColJewelleryID)
	q.Set(remote.ColUserIdentifier, eq(user))
	q.Set("order", "created_at.asc")

	req, err := s.newRequest(ctx, http.MethodGet, remote.TableWishlists, q, nil)
	if err != nil {
		return nil, err
	}

	var rows []likedRow
	if _, err := s.do(ctx, req, &rows); err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.JewelleryID)
	}
	return ids, nil
}

// InsertEntry posts a new wishlists row. PostgREST answers 409 on the unique pair.
func (s *Store) InsertEntry(ctx context.Context, user, product string) error {
	body := map[string]string{
		remote.ColUserIdentifier: user,
		remote.ColJewelleryID:    product,
	}
	req, err := s.newRequest(ctx, http.MethodPost, remote.TableWishlists, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	if _, err := s.do(ctx, req, nil); err != nil {
		return fmt.Errorf("insert wishlist entry: %w", err)
	}
	return nil
}

// DeleteEntry deletes the matching row, asking for the deleted rows back so a
// no-op delete can be told apart.
func (s *Store) DeleteEntry(ctx context.Context, user, product string) error {
	q := url.Values{}
	q.Set(remote.ColUserIdentifier, eq(user))
	q.Set(remote.ColJewelleryID, eq(product))

	req, err := s.newRequest(ctx, http.MethodDelete, remote.TableWishlists, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	var deleted []likedRow
	if _, err := s.do(ctx, req, &deleted); err != nil {
		return fmt.Errorf("delete wishlist entry: %w", err)
	}
	if len(deleted) == 0 {
		return apperrors.NotFound("wishlist entry", product)
	}
	return nil
}

// LikeCount reads jewellery.wishlist_count.
func (s *Store) LikeCount(ctx context.Context, product string) (int, error) {
	q := url.Values{}
	q.Set("select", remote.ColWishlistCount)
	q.Set("id", eq(product))

	req, err := s.newRequest(ctx, http.MethodGet, remote.TableJewellery, q, nil)
	if err != nil {
		return 0, err
	}

	var rows []counterRow
	if _, err := s.do(ctx, req, &rows); err != nil {
		return 0, fmt.Errorf("read like count: %w", err)
	}
	if len(rows) == 0 {
		return 0, apperrors.NotFound("jewellery", product)
	}
	if rows[0].WishlistCount == nil {
		return 0, nil
	}
	return *rows[0].WishlistCount, nil
}

// SetLikeCount patches jewellery.wishlist_count.
func (s *Store) SetLikeCount(ctx context.Context, product string, n int) error {
	q := url.Values{}
	q.Set("id", eq(product))
	q.Set("select", "id")

	req, err := s.newRequest(ctx, http.MethodPatch, remote.TableJewellery, q, map[string]int{remote.ColWishlistCount: n})
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	var updated []json.RawMessage
	if _, err := s.do(ctx, req, &updated); err != nil {
		return fmt.Errorf("update like count: %w", err)
	}
	if len(updated) == 0 {
		return apperrors.NotFound("jewellery", product)
	}
	return nil
}

// CountEntries asks PostgREST for an exact count in the Content-Range header.
func (s *Store) CountEntries(ctx context.Context, product string) (int, error) {
	q := url.Values{}
	q.Set("select", remote.ColJewelleryID)
	q.Set(remote.ColJewelleryID, eq(product))

	req, err := s.newRequest(ctx, http.MethodHead, remote.TableWishlists, q, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.do(ctx, req, nil)
	if err != nil {
		return 0, fmt.Errorf("count wishlist entries: %w", err)
	}
	n, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, apperrors.Upstream(remoteName+" returned no usable count", err)
	}
	return n, nil
}

// parseContentRangeTotal reads the total from "0-24/3573" or "*/0".
func parseContentRangeTotal(h string) (int, error) {
	_, total, ok := strings.Cut(h, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("content-range %q has no total", h)
	}
	n, err := strconv.Atoi(total)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("content-range %q: bad total", h)
	}
	return n, nil
}

// Ping selects at most one product id.
func (s *Store) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")

	req, err := s.newRequest(ctx, http.MethodGet, remote.TableJewellery, q, nil)
	if err != nil {
		return err
	}
	if _, err := s.do(ctx, req, nil); err != nil {
		return fmt.Errorf("ping postgrest: %w", err)
	}
	return nil
}
