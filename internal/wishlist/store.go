// Package wishlist owns the liked-product set of one anonymous identity and
// keeps it synchronized with the remote store.
//
// Local state only changes after the remote store confirmed a mutation. The
// per-product like counter is maintained best-effort after each mutation and
// can be recomputed from the entry rows when it drifts.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-jewellery/storefront/internal/domain"
	"github.com/atelier-jewellery/storefront/internal/guard"
	"github.com/atelier-jewellery/storefront/internal/notify"
	"github.com/atelier-jewellery/storefront/internal/projection"
	"github.com/atelier-jewellery/storefront/internal/remote"
	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
	"github.com/atelier-jewellery/storefront/pkg/tracing"
)

const tracerName = "github.com/atelier-jewellery/storefront/internal/wishlist"

// Events receives domain events for confirmed changes.
type Events interface {
	PublishItemAdded(ctx context.Context, user, productID string) error
	PublishItemRemoved(ctx context.Context, user, productID string) error
	PublishCounterReconciled(ctx context.Context, productID string, previous, current int) error
}

// Option configures a Store.
type Option func(*Store)

// WithEvents publishes domain events through e.
func WithEvents(e Events) Option {
	return func(s *Store) { s.events = e }
}

// WithMetrics records store metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the clock used for notification expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTracer overrides the tracer used for store spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// Store is the wishlist of one identity.
type Store struct {
	user     string
	remote   remote.Store
	guard    guard.Guard
	surface  projection.Surface
	notifier notify.Notifier
	events   Events
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	mu      sync.RWMutex
	liked   map[string]struct{}
	drifted map[string]struct{}
}

// New creates an empty store for user. Call Initialize to load it.
func New(
	user string,
	rs remote.Store,
	g guard.Guard,
	surface projection.Surface,
	notifier notify.Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Store {
	s := &Store{
		user:     user,
		remote:   rs,
		guard:    g,
		surface:  surface,
		notifier: notifier,
		logger:   logger.With(slog.String("identity", user)),
		tracer:   tracing.Tracer(tracerName),
		now:      time.Now,
		liked:    make(map[string]struct{}),
		drifted:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User returns the identity this store belongs to.
func (s *Store) User() string {
	return s.user
}

// Initialize replaces local state with the remote liked set and refreshes the
// projections. When the load fails local state is left as it was (empty on
// first load), the failure is logged and the projections are still
// refreshed. The returned error is informational.
func (s *Store) Initialize(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "wishlist.Initialize")
	defer span.End()

	ids, err := s.remote.ListLiked(ctx, s.user)
	if err != nil {
		s.metrics.loadFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		s.logger.WarnContext(ctx, "wishlist load failed", slog.String("error", err.Error()))
		s.RefreshProjections()
		return fmt.Errorf("load wishlist: %w", err)
	}

	liked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		liked[id] = struct{}{}
	}

	s.mu.Lock()
	s.liked = liked
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("wishlist.count", len(liked)))
	s.logger.DebugContext(ctx, "wishlist loaded", slog.Int("count", len(liked)))
	s.RefreshProjections()
	return nil
}

// IsLiked reports whether productID is in the local liked set.
func (s *Store) IsLiked(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.liked[productID]
	return ok
}

// Count returns the size of the local liked set.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.liked)
}

// Liked returns the liked product ids, sorted.
func (s *Store) Liked() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.liked))
	for id := range s.liked {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Drifted returns the products whose counter update failed since their last
// reconciliation, sorted.
func (s *Store) Drifted() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.drifted))
	for id := range s.drifted {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// RefreshProjections sets every declared widget from local state and updates
// the counter badge.
func (s *Store) RefreshProjections() {
	s.ProjectOnto(s.surface)
}

// ProjectOnto sets the widgets declared on surface from local state and
// updates its counter. It leaves the store's own surface alone.
func (s *Store) ProjectOnto(surface projection.Surface) {
	ids := surface.WidgetIDs()

	s.mu.RLock()
	states := make(map[string]bool, len(ids))
	for _, id := range ids {
		_, states[id] = s.liked[id]
	}
	count := len(s.liked)
	s.mu.RUnlock()

	for _, id := range ids {
		surface.SetLiked(id, states[id])
	}
	surface.SetCount(count)
}

// Toggle removes productID when it is liked and adds it otherwise. The
// decision is taken while holding the product's in-flight slot.
func (s *Store) Toggle(ctx context.Context, productID string) domain.Result {
	return s.run(ctx, productID, func() domain.Op {
		if s.IsLiked(productID) {
			return domain.OpRemove
		}
		return domain.OpAdd
	})
}

// Add likes productID.
func (s *Store) Add(ctx context.Context, productID string) domain.Result {
	return s.run(ctx, productID, func() domain.Op { return domain.OpAdd })
}

// Remove unlikes productID.
func (s *Store) Remove(ctx context.Context, productID string) domain.Result {
	return s.run(ctx, productID, func() domain.Op { return domain.OpRemove })
}

// ToggleAsync runs Toggle in the background and delivers its result on the
// returned channel, which is closed afterwards. Once dispatched the call is
// not cancelled by ctx.
func (s *Store) ToggleAsync(ctx context.Context, productID string) <-chan domain.Result {
	ch := make(chan domain.Result, 1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		ch <- s.Toggle(ctx, productID)
	}()
	return ch
}

func (s *Store) result(productID string, op domain.Op, err error) domain.Result {
	return domain.Result{
		ProductID: productID,
		Op:        op,
		Liked:     s.IsLiked(productID),
		Count:     s.Count(),
		Err:       err,
	}
}

func (s *Store) run(ctx context.Context, productID string, decide func() domain.Op) domain.Result {
	if productID == "" {
		return s.result(productID, decide(), apperrors.InvalidInput("product id is required"))
	}

	release, err := s.guard.Acquire(ctx, s.user, productID)
	if err != nil {
		op := decide()
		if errors.Is(err, domain.ErrInFlight) {
			s.metrics.mutation(op, outcomeDropped)
			s.logger.DebugContext(ctx, "wishlist mutation dropped, another one is in flight",
				slog.String("product_id", productID),
				slog.String("op", string(op)),
			)
			return s.result(productID, op, err)
		}
		s.logger.ErrorContext(ctx, "wishlist guard failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return s.result(productID, op, fmt.Errorf("acquire guard: %w", err))
	}
	defer release()

	op := decide()
	ctx, span := s.tracer.Start(ctx, "wishlist."+string(op), trace.WithAttributes(
		attribute.String("wishlist.product_id", productID),
	))
	defer span.End()

	var res domain.Result
	if op == domain.OpAdd {
		res = s.add(ctx, productID)
	} else {
		res = s.remove(ctx, productID)
	}

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(op)+" failed")
	}
	return res
}

func (s *Store) add(ctx context.Context, productID string) domain.Result {
	err := s.remote.InsertEntry(ctx, s.user, productID)
	switch {
	case err == nil:
		s.setLiked(productID, true)
		s.adjustCounter(ctx, productID, +1)
		s.RefreshProjections()
		s.notify(ctx, domain.OpAdd, productID, false)
		s.metrics.mutation(domain.OpAdd, outcomeApplied)
		s.publish(ctx, "item_added", func() error {
			return s.events.PublishItemAdded(ctx, s.user, productID)
		})
		return s.result(productID, domain.OpAdd, nil)

	case errors.Is(err, apperrors.ErrAlreadyExists):
		// The row is already there: adopt it without counting it twice. A
		// retried insert that committed on an earlier attempt also lands here
		// with the counter never bumped, so the counter is left for
		// reconciliation.
		s.setLiked(productID, true)
		s.markDrifted(productID)
		s.RefreshProjections()
		s.notify(ctx, domain.OpAdd, productID, false)
		s.metrics.mutation(domain.OpAdd, outcomeConverged)
		s.logger.InfoContext(ctx, "wishlist entry already present remotely",
			slog.String("product_id", productID),
		)
		return s.result(productID, domain.OpAdd, nil)

	default:
		s.notify(ctx, domain.OpAdd, productID, true)
		s.metrics.mutation(domain.OpAdd, outcomeFailed)
		s.logger.ErrorContext(ctx, "add to wishlist failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return s.result(productID, domain.OpAdd, fmt.Errorf("add %s: %w", productID, err))
	}
}

func (s *Store) remove(ctx context.Context, productID string) domain.Result {
	err := s.remote.DeleteEntry(ctx, s.user, productID)
	switch {
	case err == nil:
		s.setLiked(productID, false)
		s.adjustCounter(ctx, productID, -1)
		s.RefreshProjections()
		s.notify(ctx, domain.OpRemove, productID, false)
		s.metrics.mutation(domain.OpRemove, outcomeApplied)
		s.publish(ctx, "item_removed", func() error {
			return s.events.PublishItemRemoved(ctx, s.user, productID)
		})
		return s.result(productID, domain.OpRemove, nil)

	case errors.Is(err, apperrors.ErrNotFound):
		// Nothing to delete: the row is already gone, possibly by an earlier
		// attempt of this same call.
		s.setLiked(productID, false)
		s.markDrifted(productID)
		s.RefreshProjections()
		s.notify(ctx, domain.OpRemove, productID, false)
		s.metrics.mutation(domain.OpRemove, outcomeConverged)
		s.logger.InfoContext(ctx, "wishlist entry already absent remotely",
			slog.String("product_id", productID),
		)
		return s.result(productID, domain.OpRemove, nil)

	default:
		s.notify(ctx, domain.OpRemove, productID, true)
		s.metrics.mutation(domain.OpRemove, outcomeFailed)
		s.logger.ErrorContext(ctx, "remove from wishlist failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return s.result(productID, domain.OpRemove, fmt.Errorf("remove %s: %w", productID, err))
	}
}

func (s *Store) setLiked(productID string, liked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if liked {
		s.liked[productID] = struct{}{}
	} else {
		delete(s.liked, productID)
	}
}

// markDrifted flags productID's like counter for the next reconciliation.
func (s *Store) markDrifted(productID string) {
	s.mu.Lock()
	s.drifted[productID] = struct{}{}
	s.mu.Unlock()
}

// adjustCounter read-modify-writes the product's like counter, clamped at
// zero. Failures are logged and the product is marked drifted.
func (s *Store) adjustCounter(ctx context.Context, productID string, delta int) {
	current, err := s.remote.LikeCount(ctx, productID)
	if err == nil {
		err = s.remote.SetLikeCount(ctx, productID, domain.ClampCount(&current, delta))
	}
	if err == nil {
		return
	}

	s.markDrifted(productID)
	s.metrics.counterFailed()
	s.logger.WarnContext(ctx, "like counter update failed",
		slog.String("product_id", productID),
		slog.Int("delta", delta),
		slog.String("error", err.Error()),
	)
}

// ReconcileCounter recomputes productID's like counter from the entry rows
// and returns the new value.
func (s *Store) ReconcileCounter(ctx context.Context, productID string) (int, error) {
	if productID == "" {
		return 0, apperrors.InvalidInput("product id is required")
	}

	ctx, span := s.tracer.Start(ctx, "wishlist.ReconcileCounter", trace.WithAttributes(
		attribute.String("wishlist.product_id", productID),
	))
	defer span.End()

	n, err := s.reconcile(ctx, productID)
	s.metrics.reconciled(err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return 0, err
	}
	return n, nil
}

func (s *Store) reconcile(ctx context.Context, productID string) (int, error) {
	actual, err := s.remote.CountEntries(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("count entries for %s: %w", productID, err)
	}

	previous, err := s.remote.LikeCount(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("read counter for %s: %w", productID, err)
	}

	if previous != actual {
		if err := s.remote.SetLikeCount(ctx, productID, actual); err != nil {
			return 0, fmt.Errorf("write counter for %s: %w", productID, err)
		}
		s.logger.InfoContext(ctx, "like counter reconciled",
			slog.String("product_id", productID),
			slog.Int("previous", previous),
			slog.Int("current", actual),
		)
		s.publish(ctx, "counter_reconciled", func() error {
			return s.events.PublishCounterReconciled(ctx, productID, previous, actual)
		})
	}

	s.mu.Lock()
	delete(s.drifted, productID)
	s.mu.Unlock()
	return actual, nil
}

// ReconcileDrifted reconciles every drifted product and reports how many
// succeeded. Products that fail stay drifted for the next sweep.
func (s *Store) ReconcileDrifted(ctx context.Context) (int, error) {
	var (
		done int
		errs []error
	)
	for _, id := range s.Drifted() {
		if _, err := s.ReconcileCounter(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (s *Store) notify(ctx context.Context, op domain.Op, productID string, failed bool) {
	n := s.notifier
	if cn, ok := notify.FromContext(ctx); ok {
		n = cn
	}
	if n == nil {
		return
	}
	n.Notify(ctx, domain.NotificationFor(op, productID, failed, s.now()))
}

func (s *Store) publish(ctx context.Context, name string, fn func() error) {
	if s.events == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "publish wishlist event failed",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}
