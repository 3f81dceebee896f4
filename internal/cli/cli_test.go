package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-jewellery/storefront/internal/domain"
	"github.com/atelier-jewellery/storefront/internal/guard"
	"github.com/atelier-jewellery/storefront/internal/remote/memory"
)

type cliFixture struct {
	remote  *memory.Store
	storage string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	f := &cliFixture{
		remote:  memory.NewStore("ring-101", "cuff-3"),
		storage: filepath.Join(t.TempDir(), "storage.json"),
	}

	orig := OpenBackend
	OpenBackend = func(context.Context, *slog.Logger) (*Backend, error) {
		return &Backend{Remote: f.remote, Guard: guard.NewLocal(), Close: func() {}}, nil
	}
	t.Cleanup(func() { OpenBackend = orig })
	return f
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--storage", f.storage}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestWhoami_StableAcrossRuns(t *testing.T) {
	f := newCLIFixture(t)

	first, err := f.run(t, "whoami")
	require.NoError(t, err)
	second, err := f.run(t, "whoami")
	require.NoError(t, err)

	id := strings.TrimSpace(first)
	assert.True(t, domain.IsValidIdentity(id), id)
	assert.Equal(t, first, second)
}

func TestAddListCountStatus(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "add", "ring-101")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] "+domain.MsgAdded)
	assert.Contains(t, out, "♥ ring-101")
	assert.Contains(t, out, "Wishlist (1)")

	out, err = f.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "♥ ring-101\n", out)

	out, err = f.run(t, "count")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = f.run(t, "status", "cuff-3")
	require.NoError(t, err)
	assert.Equal(t, "cuff-3: not liked\n", out)
}

func TestToggle_RemovesLikedProduct(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "add", "cuff-3")
	require.NoError(t, err)

	out, err := f.run(t, "--json", "toggle", "cuff-3")
	require.NoError(t, err)

	var got struct {
		Result domain.Result         `json:"result"`
		Toasts []domain.Notification `json:"toasts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, domain.OpRemove, got.Result.Op)
	assert.False(t, got.Result.Liked)
	require.Len(t, got.Toasts, 1)
	assert.Equal(t, domain.MsgRemoved, got.Toasts[0].Message)

	out, err = f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "empty")
}

func TestReconcile(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.remote.InsertEntry(context.Background(), "user_other", "ring-101"))

	out, err := f.run(t, "reconcile", "ring-101")

	require.NoError(t, err)
	assert.Equal(t, "ring-101: 1 likes\n", out)
}

func TestMutation_RequiresProductID(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "add")

	assert.Error(t, err)
}

func TestOpenBackendError(t *testing.T) {
	f := newCLIFixture(t)
	OpenBackend = func(context.Context, *slog.Logger) (*Backend, error) {
		return nil, errors.New("no route to host")
	}

	_, err := f.run(t, "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open remote store")
}
