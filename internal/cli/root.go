// Package cli implements the wishlist command line client. It behaves like
// one browser: the identity lives in a small JSON file and every command
// works against the configured remote store.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "wishlist"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Manage the Atelier wishlist of this machine's shopper identity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("storage", "", "identity storage file (default: user config dir)")
	cmd.PersistentFlags().StringSlice("widgets", nil, "product ids to render on the board")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Bool("verbose", false, "log diagnostics to stderr")

	cmd.AddCommand(
		NewWhoamiCmd(),
		NewListCmd(),
		NewCountCmd(),
		NewStatusCmd(),
		NewToggleCmd(),
		NewAddCmd(),
		NewRemoveCmd(),
		NewReconcileCmd(),
	)

	return cmd
}
