// Package notify delivers transient wishlist notifications (toasts).
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Toasts is a per-session queue of notifications that expire on their own.
type Toasts struct {
	mu    sync.Mutex
	items []domain.Notification
}

// NewToasts creates an empty queue.
func NewToasts() *Toasts {
	return &Toasts{}
}

// Notify implements Notifier.
func (t *Toasts) Notify(_ context.Context, n domain.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, n)
}

// Drain returns the toasts still live at now and empties the queue.
func (t *Toasts) Drain(now time.Time) []domain.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := t.live(now)
	t.items = nil
	return live
}

// Pending returns the toasts live at now without removing them.
func (t *Toasts) Pending(now time.Time) []domain.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := t.live(now)
	t.items = append(t.items[:0], live...)
	return append([]domain.Notification(nil), live...)
}

func (t *Toasts) live(now time.Time) []domain.Notification {
	out := make([]domain.Notification, 0, len(t.items))
	for _, n := range t.items {
		if n.Live(now) {
			out = append(out, n)
		}
	}
	return out
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging through l.
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n domain.Notification) {
	level := slog.LevelInfo
	if n.Kind == domain.NotifyError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Message,
		slog.String("kind", string(n.Kind)),
		slog.String("product_id", n.ProductID),
	)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n domain.Notification) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n domain.Notification)

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, n domain.Notification) {
	f(ctx, n)
}

type ctxKey struct{}

// NewContext returns a context whose mutations notify n instead of the
// store's own notifier. The HTTP API uses it to hand each request the
// toasts it produced.
func NewContext(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

// FromContext returns the notifier installed by NewContext.
func FromContext(ctx context.Context) (Notifier, bool) {
	n, ok := ctx.Value(ctxKey{}).(Notifier)
	return n, ok && n != nil
}
