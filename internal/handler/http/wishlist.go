package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-jewellery/storefront/internal/domain"
	"github.com/atelier-jewellery/storefront/internal/notify"
	"github.com/atelier-jewellery/storefront/internal/projection"
	"github.com/atelier-jewellery/storefront/internal/session"
	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
	"github.com/atelier-jewellery/storefront/pkg/httputil"
	"github.com/atelier-jewellery/storefront/pkg/validator"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	sessions *session.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(sessions *session.Registry, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// --- Request DTOs ---

// ToggleRequest is the JSON request body for the global toggle entry point.
type ToggleRequest struct {
	ProductID string `json:"product_id" validate:"required,productid"`
}

// --- Response DTOs ---

// WishlistResponse is the state of a shopper's wishlist.
type WishlistResponse struct {
	Liked  []string              `json:"liked"`
	Count  int                   `json:"count"`
	Board  projection.Snapshot   `json:"board"`
	Toasts []domain.Notification `json:"toasts"`
}

// MutationResponse reports a settled mutation together with the refreshed
// board and the toasts it produced.
type MutationResponse struct {
	Result domain.Result         `json:"result"`
	Board  projection.Snapshot   `json:"board"`
	Toasts []domain.Notification `json:"toasts"`
}

// LikedResponse answers a single-product lookup.
type LikedResponse struct {
	ProductID string `json:"product_id"`
	Liked     bool   `json:"liked"`
}

// CounterResponse reports a reconciled like counter.
type CounterResponse struct {
	ProductID string `json:"product_id"`
	Count     int    `json:"count"`
}

// --- Handlers ---

// GetWishlist handles GET /api/v1/wishlist?widgets=a,b
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, WishlistResponse{
		Liked:  s.Store.Liked(),
		Count:  s.Store.Count(),
		Board:  h.board(r, s),
		Toasts: orEmpty(s.Toasts.Drain(h.now())),
	})
}

// GetItem handles GET /api/v1/wishlist/{productId}
func (h *WishlistHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ProductIDParam(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, LikedResponse{
		ProductID: productID,
		Liked:     s.Store.IsLiked(productID),
	})
}

// Toggle handles POST /api/v1/wishlist/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx, toasts := h.mutationContext(r)
	h.writeResult(w, r, s, toasts, s.Store.Toggle(ctx, req.ProductID))
}

// AddItem handles PUT /api/v1/wishlist/{productId}
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ProductIDParam(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx, toasts := h.mutationContext(r)
	h.writeResult(w, r, s, toasts, s.Store.Add(ctx, productID))
}

// RemoveItem handles DELETE /api/v1/wishlist/{productId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ProductIDParam(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx, toasts := h.mutationContext(r)
	h.writeResult(w, r, s, toasts, s.Store.Remove(ctx, productID))
}

// ReconcileCounter handles POST /api/v1/wishlist/counters/{productId}/reconcile
func (h *WishlistHandler) ReconcileCounter(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ProductIDParam(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	n, err := s.Store.ReconcileCounter(context.WithoutCancel(r.Context()), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, CounterResponse{ProductID: productID, Count: n})
}

// --- Helpers ---

// session returns the caller's session, loading it from the remote store
// when needed.
func (h *WishlistHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Internal(errors.New("identity middleware not installed")), h.logger)
		return nil, false
	}
	return h.sessions.Get(r.Context(), id), true
}

// board projects the session onto a board holding only the widgets named in
// this request, so tabs of one identity never overwrite each other's widgets.
func (h *WishlistHandler) board(r *http.Request, s *session.Session) projection.Snapshot {
	b := projection.NewBoard(true, splitWidgets(r.URL.Query()["widgets"])...)
	s.Store.ProjectOnto(b)
	return b.Snapshot()
}

// mutationContext detaches a mutation from the request's cancellation, since
// a dispatched write is not cancelled, and collects the toasts it produces.
func (h *WishlistHandler) mutationContext(r *http.Request) (context.Context, *notify.Toasts) {
	toasts := notify.NewToasts()
	ctx := notify.NewContext(context.WithoutCancel(r.Context()), notify.Multi{toasts, notify.NewLogNotifier(h.logger)})
	return ctx, toasts
}

func (h *WishlistHandler) writeResult(w http.ResponseWriter, r *http.Request, s *session.Session, toasts *notify.Toasts, res domain.Result) {
	body := MutationResponse{
		Result: res,
		Board:  h.board(r, s),
		Toasts: orEmpty(toasts.Drain(h.now())),
	}

	if res.Err == nil {
		httputil.WriteData(w, http.StatusOK, body)
		return
	}

	var err error
	switch {
	case errors.Is(res.Err, domain.ErrInFlight):
		err = apperrors.Conflict("IN_FLIGHT", "another change to this product is still in progress")
	case errors.Is(res.Err, apperrors.ErrInvalidInput):
		err = res.Err
	default:
		err = apperrors.Upstream("the wishlist could not be updated", res.Err)
	}
	httputil.WriteErrorWithData(w, r, err, body, h.logger)
}

// writeError maps domain errors to HTTP error responses.
func (h *WishlistHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrNotFound) {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteError(w, r, apperrors.Upstream("the wishlist store is unavailable", err), h.logger)
}

func splitWidgets(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if validator.IsProductID(id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func orEmpty(n []domain.Notification) []domain.Notification {
	if n == nil {
		return []domain.Notification{}
	}
	return n
}
