package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingStorage struct{ getErr, setErr error }

func (f failingStorage) Get(context.Context, string) (string, bool, error) { return "", false, f.getErr }
func (f failingStorage) Set(context.Context, string, string) error { return f.setErr }

// ============================================================================
// Provider
// ============================================================================

func TestProvider_CreatesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	id, err := NewProvider(storage, newTestLogger()).Identity(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^user_[0-9a-f]{32}$`, id.ID)

	stored, ok, _ := storage.Get(ctx, "atelier_user_id")
	require.True(t, ok)
	assert.Equal(t, id.ID, stored)

	// A fresh provider over the same storage (a page reload) reads it back.
	again, err := NewProvider(storage, newTestLogger()).Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestProvider_ReadsExistingToken(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, domain.IdentityKey, "user_k3j9x2lq81700000000"))

	id, err := NewProvider(storage, newTestLogger()).Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user_k3j9x2lq81700000000", id.ID)
}

func TestProvider_ReplacesMalformedToken(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, domain.IdentityKey, "<script>"))

	id, err := NewProvider(storage, newTestLogger()).Identity(ctx)
	require.NoError(t, err)
	assert.True(t, domain.IsValidIdentity(id.ID))
}

func TestProvider_ConcurrentFirstCallsConverge(t *testing.T) {
	p := NewProvider(NewMemoryStorage(), newTestLogger())

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := p.Identity(context.Background())
			assert.NoError(t, err)
			ids[i] = id.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestProvider_StorageErrors(t *testing.T) {
	_, err := NewProvider(failingStorage{getErr: errors.New("disk")}, newTestLogger()).Identity(context.Background())
	assert.ErrorContains(t, err, "read identity")

	_, err = NewProvider(failingStorage{setErr: errors.New("full")}, newTestLogger()).Identity(context.Background())
	assert.ErrorContains(t, err, "persist identity")
}

// ============================================================================
// FileStorage
// ============================================================================

func TestFileStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	s := NewFileStorage(path)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Set(ctx, "other", "w"))

	v, ok, err := NewFileStorage(path).Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileStorage(path).Get(context.Background(), "k")
	assert.ErrorContains(t, err, "decode")
}

// ============================================================================
// CookieStorage
// ============================================================================

func TestCookieStorage_IssuesLongLivedCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := NewCookieStorage(rec, req, true)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id, err := NewProvider(s, newTestLogger()).Identity(context.Background())
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "atelier_user_id", c.Name)
	assert.Equal(t, id.ID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, now.Add(CookieMaxAge).Unix(), c.Expires.Unix())

	v, ok, err := s.Get(context.Background(), "atelier_user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id.ID, v)
}

func TestCookieStorage_ReusesExistingCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "atelier_user_id", Value: "user_abc123"})

	id, err := NewProvider(NewCookieStorage(rec, req, false), newTestLogger()).Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user_abc123", id.ID)
	assert.Empty(t, rec.Result().Cookies())
}
