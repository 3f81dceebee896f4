package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_DeclareStartsUnliked(t *testing.T) {
	b := NewBoard(true, "ring-101", "", "cuff-3", "ring-101")

	assert.Equal(t, []string{"ring-101", "cuff-3"}, b.WidgetIDs())

	snap := b.Snapshot()
	require.Len(t, snap.Widgets, 3)
	for _, w := range snap.Widgets {
		assert.False(t, w.Liked)
		assert.Equal(t, "♡", w.Glyph)
		assert.Empty(t, w.Class)
		assert.Equal(t, "Add to wishlist", w.AriaLabel)
	}
	require.NotNil(t, snap.Counter)
	assert.False(t, snap.Counter.Visible)
}

func TestBoard_SetLikedUpdatesEveryMatchingWidget(t *testing.T) {
	b := NewBoard(false, "ring-101", "cuff-3", "ring-101")
	b.SetLiked("ring-101", true)

	for _, w := range b.Snapshot().Widgets {
		if w.ProductID == "ring-101" {
			assert.True(t, w.Liked)
			assert.Equal(t, "♥", w.Glyph)
			assert.Equal(t, "wishlisted", w.Class)
			assert.Equal(t, "Remove from wishlist", w.AriaLabel)
		} else {
			assert.False(t, w.Liked)
		}
	}

	b.SetLiked("ring-101", false)
	w, ok := b.Snapshot().Widget("ring-101")
	require.True(t, ok)
	assert.Equal(t, "♡", w.Glyph)
}

func TestBoard_CounterHiddenAtZero(t *testing.T) {
	b := NewBoard(true)

	b.SetCount(2)
	assert.Equal(t, &Counter{Value: 2, Visible: true}, b.Snapshot().Counter)

	b.SetCount(0)
	assert.Equal(t, &Counter{Value: 0, Visible: false}, b.Snapshot().Counter)
}

func TestBoard_NoCounterElement(t *testing.T) {
	b := NewBoard(false)
	b.SetCount(3)
	assert.Nil(t, b.Snapshot().Counter)
}

func TestBoard_SnapshotIsACopy(t *testing.T) {
	b := NewBoard(true, "ring-101")
	snap := b.Snapshot()
	snap.Widgets[0].Liked = true
	snap.Counter.Value = 9

	again := b.Snapshot()
	assert.False(t, again.Widgets[0].Liked)
	assert.Zero(t, again.Counter.Value)
}

func TestBoard_Replace(t *testing.T) {
	b := NewBoard(true, "ring-101")
	b.Replace("cuff-3", "brooch-9")
	assert.Equal(t, []string{"cuff-3", "brooch-9"}, b.WidgetIDs())

	_, ok := b.Snapshot().Widget("ring-101")
	assert.False(t, ok)
}
