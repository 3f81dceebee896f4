package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestToasts_ExpireAfterTwoSeconds(t *testing.T) {
	q := NewToasts()
	q.Notify(context.Background(), domain.NotificationFor(domain.OpAdd, "ring-101", false, t0))
	q.Notify(context.Background(), domain.NotificationFor(domain.OpRemove, "cuff-3", true, t0.Add(time.Second)))

	pending := q.Pending(t0.Add(1500 * time.Millisecond))
	require.Len(t, pending, 2)
	assert.Equal(t, "Added to wishlist ♥", pending[0].Message)

	pending = q.Pending(t0.Add(2500 * time.Millisecond))
	require.Len(t, pending, 1)
	assert.Equal(t, "Failed to remove from wishlist", pending[0].Message)
	assert.Equal(t, domain.NotifyError, pending[0].Kind)
}

func TestToasts_DrainEmpties(t *testing.T) {
	q := NewToasts()
	q.Notify(context.Background(), domain.NotificationFor(domain.OpAdd, "ring-101", false, t0))

	assert.Len(t, q.Drain(t0), 1)
	assert.Empty(t, q.Drain(t0))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	n.Notify(context.Background(), domain.NotificationFor(domain.OpAdd, "ring-101", true, t0))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "Failed to add to wishlist")
	assert.Contains(t, buf.String(), "product_id=ring-101")
}

func TestMulti(t *testing.T) {
	var got []string
	record := Func(func(_ context.Context, n domain.Notification) { got = append(got, n.Message) })

	Multi{record, nil, record}.Notify(context.Background(), domain.NotificationFor(domain.OpRemove, "x", false, t0))
	assert.Equal(t, []string{"Removed from wishlist", "Removed from wishlist"}, got)
}

func TestContextNotifier(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	q := NewToasts()
	ctx := NewContext(context.Background(), q)
	n, ok := FromContext(ctx)
	require.True(t, ok)

	n.Notify(ctx, domain.NotificationFor(domain.OpRemove, "cuff-3", false, t0))
	assert.Len(t, q.Drain(t0), 1)
}
