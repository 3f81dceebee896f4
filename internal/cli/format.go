package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atelier-jewellery/storefront/internal/domain"
	"github.com/atelier-jewellery/storefront/internal/projection"
)

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(out(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type mutationOutput struct {
	Result domain.Result         `json:"result"`
	Error  string                `json:"error,omitempty"`
	Board  projection.Snapshot   `json:"board"`
	Toasts []domain.Notification `json:"toasts"`
}

func writeMutation(cmd *cobra.Command, ctx *Context, res domain.Result) error {
	toasts := ctx.Toasts.Drain(time.Now())
	if ctx.JSON {
		o := mutationOutput{Result: res, Board: ctx.Board.Snapshot(), Toasts: toasts}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		return writeJSON(cmd, o)
	}

	for _, t := range toasts {
		fmt.Fprintf(out(cmd), "[%s] %s\n", t.Kind, t.Message)
	}
	renderBoard(cmd, ctx.Board.Snapshot())
	return nil
}

func renderBoard(cmd *cobra.Command, s projection.Snapshot) {
	for _, w := range s.Widgets {
		fmt.Fprintf(out(cmd), "  %s %-24s %s\n", w.Glyph, w.ProductID, w.AriaLabel)
	}
	if s.Counter != nil && s.Counter.Visible {
		fmt.Fprintf(out(cmd), "Wishlist (%d)\n", s.Counter.Value)
	}
}
