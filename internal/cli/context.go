package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/atelier-jewellery/storefront/internal/app"
	"github.com/atelier-jewellery/storefront/internal/config"
	"github.com/atelier-jewellery/storefront/internal/guard"
	"github.com/atelier-jewellery/storefront/internal/identity"
	"github.com/atelier-jewellery/storefront/internal/notify"
	"github.com/atelier-jewellery/storefront/internal/projection"
	"github.com/atelier-jewellery/storefront/internal/remote"
	"github.com/atelier-jewellery/storefront/internal/wishlist"
	"github.com/atelier-jewellery/storefront/pkg/logger"
)

// Backend is what a command needs from the outside world.
type Backend struct {
	Remote remote.Store
	Guard  guard.Guard
	Close  func()
}

// OpenBackend connects the remote store. Tests replace it.
var OpenBackend = func(ctx context.Context, log *slog.Logger) (*Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Remote == config.RemoteMemory {
		log.Warn("WISHLIST_REMOTE is memory; nothing is kept between runs")
	}
	b, err := app.OpenBackends(ctx, cfg, nil, log)
	if err != nil {
		return nil, err
	}
	return &Backend{Remote: b.Remote, Guard: b.Guard, Close: b.Close}, nil
}

// Context is the per-invocation state shared by commands.
type Context struct {
	Identity string
	Storage  *identity.FileStorage
	Store    *wishlist.Store
	Board    *projection.Board
	Toasts   *notify.Toasts
	Logger   *slog.Logger
	JSON     bool

	close func()
}

// Close releases the backend.
func (c *Context) Close() {
	if c.close != nil {
		c.close()
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := "error"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logger.NewText(level, cmd.ErrOrStderr())
}

func identityStorage(cmd *cobra.Command) (*identity.FileStorage, error) {
	path, _ := cmd.Flags().GetString("storage")
	if path == "" {
		var err error
		path, err = identity.DefaultStoragePath()
		if err != nil {
			return nil, err
		}
	}
	return identity.NewFileStorage(path), nil
}

func resolveIdentity(cmd *cobra.Command, log *slog.Logger) (string, *identity.FileStorage, error) {
	storage, err := identityStorage(cmd)
	if err != nil {
		return "", nil, err
	}
	id, err := identity.NewProvider(storage, log).Identity(cmd.Context())
	if err != nil {
		return "", nil, err
	}
	return id.ID, storage, nil
}

// GetContext resolves the identity, connects the backend and loads the
// wishlist. A failed load is reported on stderr and leaves an empty list.
func GetContext(cmd *cobra.Command) (*Context, error) {
	log := newLogger(cmd)
	ctx := cmd.Context()

	user, storage, err := resolveIdentity(cmd, log)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	backend, err := OpenBackend(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	widgets, _ := cmd.Flags().GetStringSlice("widgets")
	jsonMode, _ := cmd.Flags().GetBool("json")

	board := projection.NewBoard(true, widgets...)
	toasts := notify.NewToasts()
	g := backend.Guard
	if g == nil {
		g = guard.NewLocal()
	}

	store := wishlist.New(user, backend.Remote, g, board,
		notify.Multi{toasts, notify.NewLogNotifier(log)}, log)
	if err := store.Initialize(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	return &Context{
		Identity: user,
		Storage:  storage,
		Store:    store,
		Board:    board,
		Toasts:   toasts,
		Logger:   log,
		JSON:     jsonMode,
		close:    backend.Close,
	}, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
