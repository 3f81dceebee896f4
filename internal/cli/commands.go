package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/atelier-jewellery/storefront/internal/domain"
	"github.com/atelier-jewellery/storefront/internal/projection"
	"github.com/atelier-jewellery/storefront/internal/wishlist"
)

// NewWhoamiCmd prints the identity token, creating it on first use.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print this machine's shopper identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, storage, err := resolveIdentity(cmd, newLogger(cmd))
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, map[string]string{"identity": user, "storage": storage.Path()})
			}
			fmt.Fprintln(out(cmd), user)
			return nil
		},
	}
}

// NewListCmd prints the liked products.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List liked products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			liked := ctx.Store.Liked()
			if ctx.JSON {
				return writeJSON(cmd, map[string]any{"liked": liked, "count": len(liked)})
			}
			if len(liked) == 0 {
				fmt.Fprintln(out(cmd), "Your wishlist is empty.")
				return nil
			}
			for _, id := range liked {
				fmt.Fprintf(out(cmd), "%s %s\n", projection.GlyphLiked, id)
			}
			return nil
		},
	}
}

// NewCountCmd prints the number of liked products.
func NewCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many products are liked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			if ctx.JSON {
				return writeJSON(cmd, map[string]int{"count": ctx.Store.Count()})
			}
			fmt.Fprintln(out(cmd), ctx.Store.Count())
			return nil
		},
	}
}

// NewStatusCmd reports whether one product is liked.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <product-id>",
		Short: "Show whether a product is liked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			liked := ctx.Store.IsLiked(args[0])
			if ctx.JSON {
				return writeJSON(cmd, map[string]any{"product_id": args[0], "liked": liked})
			}
			state := "not liked"
			if liked {
				state = "liked"
			}
			fmt.Fprintf(out(cmd), "%s: %s\n", args[0], state)
			return nil
		},
	}
}

type mutation func(s *wishlist.Store, cmd *cobra.Command, productID string) domain.Result

func newMutationCmd(use, short string, run mutation) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <product-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			productID := args[0]
			if !slices.Contains(ctx.Board.WidgetIDs(), productID) {
				ctx.Board.Declare(productID)
				ctx.Store.RefreshProjections()
			}

			res := run(ctx.Store, cmd, productID)
			if err := writeMutation(cmd, ctx, res); err != nil {
				return err
			}
			return res.Err
		},
	}
}

// NewToggleCmd likes or unlikes a product.
func NewToggleCmd() *cobra.Command {
	return newMutationCmd("toggle", "Like a product, or unlike it if already liked",
		func(s *wishlist.Store, cmd *cobra.Command, id string) domain.Result {
			return <-s.ToggleAsync(cmd.Context(), id)
		})
}

// NewAddCmd likes a product.
func NewAddCmd() *cobra.Command {
	return newMutationCmd("add", "Like a product",
		func(s *wishlist.Store, cmd *cobra.Command, id string) domain.Result {
			return s.Add(cmd.Context(), id)
		})
}

// NewRemoveCmd unlikes a product.
func NewRemoveCmd() *cobra.Command {
	return newMutationCmd("remove", "Unlike a product",
		func(s *wishlist.Store, cmd *cobra.Command, id string) domain.Result {
			return s.Remove(cmd.Context(), id)
		})
}

// NewReconcileCmd recomputes a product's like counter from the entry rows.
func NewReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <product-id>",
		Short: "Recompute a product's like counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			n, err := ctx.Store.ReconcileCounter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.JSON {
				return writeJSON(cmd, map[string]any{"product_id": args[0], "count": n})
			}
			fmt.Fprintf(out(cmd), "%s: %d likes\n", args[0], n)
			return nil
		},
	}
}
