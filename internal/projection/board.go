// Package projection renders wishlist state onto the widgets of a page: one
// toggle per product-tagged element plus an optional counter badge.
package projection

import (
	"slices"
	"sync"
)

// Surface is what the wishlist store projects onto.
type Surface interface {
	// WidgetIDs lists the product ids of all declared widgets.
	WidgetIDs() []string
	SetLiked(productID string, liked bool)
	SetCount(n int)
}

// Visual state of a wishlist toggle.
const (
	GlyphLiked   = "♥"
	GlyphUnliked = "♡"
	ClassLiked   = "wishlisted"
	LabelLiked   = "Remove from wishlist"
	LabelUnliked = "Add to wishlist"
)

// Widget is one toggle element tagged with a product id.
type Widget struct {
	ProductID string `json:"product_id"`
	Liked     bool   `json:"liked"`
	Glyph     string `json:"glyph"`
	Class     string `json:"class"`
	AriaLabel string `json:"aria_label"`
}

func (w *Widget) apply(liked bool) {
	w.Liked = liked
	if liked {
		w.Glyph, w.Class, w.AriaLabel = GlyphLiked, ClassLiked, LabelLiked
		return
	}
	w.Glyph, w.Class, w.AriaLabel = GlyphUnliked, "", LabelUnliked
}

// Counter is the badge showing how many products are liked. It is hidden at zero.
type Counter struct {
	Value   int  `json:"value"`
	Visible bool `json:"visible"`
}

// Snapshot is an immutable copy of a board.
type Snapshot struct {
	Widgets []Widget `json:"widgets"`
	Counter *Counter `json:"counter,omitempty"`
}

// Widget returns the first widget for productID.
func (s Snapshot) Widget(productID string) (Widget, bool) {
	for _, w := range s.Widgets {
		if w.ProductID == productID {
			return w, true
		}
	}
	return Widget{}, false
}

// Board is an in-memory page. Several widgets may carry the same product id
// (a grid tile and the open dossier, say).
type Board struct {
	mu      sync.RWMutex
	widgets []*Widget
	counter *Counter
}

// NewBoard creates a board, with a counter badge when withCounter is set.
func NewBoard(withCounter bool, productIDs ...string) *Board {
	b := &Board{}
	if withCounter {
		b.counter = &Counter{}
	}
	b.Declare(productIDs...)
	return b
}

// Declare adds one unliked widget per product id. Empty ids are skipped.
func (b *Board) Declare(productIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range productIDs {
		if id == "" {
			continue
		}
		w := &Widget{ProductID: id}
		w.apply(false)
		b.widgets = append(b.widgets, w)
	}
}

// Replace swaps the declared widgets for a new page's set.
func (b *Board) Replace(productIDs ...string) {
	b.mu.Lock()
	b.widgets = nil
	b.mu.Unlock()
	b.Declare(productIDs...)
}

// WidgetIDs implements Surface. Ids are distinct, in declaration order.
func (b *Board) WidgetIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.widgets))
	for _, w := range b.widgets {
		if !slices.Contains(ids, w.ProductID) {
			ids = append(ids, w.ProductID)
		}
	}
	return ids
}

// SetLiked implements Surface.
func (b *Board) SetLiked(productID string, liked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.widgets {
		if w.ProductID == productID {
			w.apply(liked)
		}
	}
}

// SetCount implements Surface. Without a counter badge it does nothing.
func (b *Board) SetCount(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counter == nil {
		return
	}
	b.counter.Value = n
	b.counter.Visible = n > 0
}

// Snapshot copies the board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{Widgets: make([]Widget, len(b.widgets))}
	for i, w := range b.widgets {
		s.Widgets[i] = *w
	}
	if b.counter != nil {
		c := *b.counter
		s.Counter = &c
	}
	return s
}
