package wishlist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/atelier-jewellery/storefront/internal/domain"
	"github.com/atelier-jewellery/storefront/internal/guard"
	"github.com/atelier-jewellery/storefront/internal/notify"
	"github.com/atelier-jewellery/storefront/internal/projection"
	"github.com/atelier-jewellery/storefront/internal/remote/memory"
	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testUser = "user_0123456789abcdef0123456789abcdef"

var errNetwork = errors.New("network unreachable")

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeRemote wraps the in-memory store with injectable failures and an
// optional gate that holds InsertEntry/DeleteEntry until released.
type fakeRemote struct {
	*memory.Store

	mu      sync.Mutex
	fail    map[string]error
	calls   map[string]int
	entered chan struct{}
	gate    chan struct{}
}

func newFakeRemote(products ...string) *fakeRemote {
	return &fakeRemote{
		Store: memory.NewStore(products...),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeRemote) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

func (f *fakeRemote) holdMutations() {
	f.entered = make(chan struct{}, 8)
	f.gate = make(chan struct{})
}

func (f *fakeRemote) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRemote) enter(method string) error {
	f.mu.Lock()
	f.calls[method]++
	err := f.fail[method]
	f.mu.Unlock()
	return err
}

func (f *fakeRemote) wait() {
	if f.gate == nil {
		return
	}
	f.entered <- struct{}{}
	<-f.gate
}

func (f *fakeRemote) ListLiked(ctx context.Context, user string) ([]string, error) {
	if err := f.enter("ListLiked"); err != nil {
		return nil, err
	}
	return f.Store.ListLiked(ctx, user)
}

func (f *fakeRemote) InsertEntry(ctx context.Context, user, product string) error {
	if err := f.enter("InsertEntry"); err != nil {
		return err
	}
	f.wait()
	return f.Store.InsertEntry(ctx, user, product)
}

func (f *fakeRemote) DeleteEntry(ctx context.Context, user, product string) error {
	if err := f.enter("DeleteEntry"); err != nil {
		return err
	}
	f.wait()
	return f.Store.DeleteEntry(ctx, user, product)
}

func (f *fakeRemote) LikeCount(ctx context.Context, product string) (int, error) {
	if err := f.enter("LikeCount"); err != nil {
		return 0, err
	}
	return f.Store.LikeCount(ctx, product)
}

func (f *fakeRemote) SetLikeCount(ctx context.Context, product string, n int) error {
	if err := f.enter("SetLikeCount"); err != nil {
		return err
	}
	return f.Store.SetLikeCount(ctx, product, n)
}

func (f *fakeRemote) CountEntries(ctx context.Context, product string) (int, error) {
	if err := f.enter("CountEntries"); err != nil {
		return 0, err
	}
	return f.Store.CountEntries(ctx, product)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishItemAdded(ctx context.Context, user, productID string) error {
	return m.Called(ctx, user, productID).Error(0)
}

func (m *mockEvents) PublishItemRemoved(ctx context.Context, user, productID string) error {
	return m.Called(ctx, user, productID).Error(0)
}

func (m *mockEvents) PublishCounterReconciled(ctx context.Context, productID string, previous, current int) error {
	return m.Called(ctx, productID, previous, current).Error(0)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type storeFixture struct {
	store   *Store
	remote  *fakeRemote
	board   *projection.Board
	toasts  *notify.Toasts
	guard   *guard.Local
	metrics *Metrics
}

func newStoreFixture(t *testing.T, widgets ...string) *storeFixture {
	t.Helper()
	f := &storeFixture{
		remote:  newFakeRemote("ring-101", "necklace-7", "cuff-3"),
		board:   projection.NewBoard(true, widgets...),
		toasts:  notify.NewToasts(),
		guard:   guard.NewLocal(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.store = New(testUser, f.remote, f.guard, f.board, f.toasts, newTestLogger(),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func (f *storeFixture) seed(t *testing.T, user string, products ...string) {
	t.Helper()
	for _, p := range products {
		require.NoError(t, f.remote.Store.InsertEntry(context.Background(), user, p))
	}
}

func (f *storeFixture) counter(t *testing.T, product string) int {
	t.Helper()
	n, err := f.remote.Store.LikeCount(context.Background(), product)
	require.NoError(t, err)
	return n
}

func (f *storeFixture) lastToast(t *testing.T) domain.Notification {
	t.Helper()
	toasts := f.toasts.Drain(fixedNow)
	require.NotEmpty(t, toasts)
	return toasts[len(toasts)-1]
}

// ============================================================================
// Initialize
// ============================================================================

func TestInitialize_FreshIdentityHidesCounter(t *testing.T) {
	f := newStoreFixture(t, "ring-101")

	require.NoError(t, f.store.Initialize(context.Background()))

	assert.Zero(t, f.store.Count())
	snap := f.board.Snapshot()
	require.NotNil(t, snap.Counter)
	assert.False(t, snap.Counter.Visible)
	w, ok := snap.Widget("ring-101")
	require.True(t, ok)
	assert.False(t, w.Liked)
}

func TestInitialize_LoadConvergence(t *testing.T) {
	f := newStoreFixture(t, "ring-101", "necklace-7", "cuff-3")
	f.seed(t, testUser, "ring-101", "cuff-3")
	f.seed(t, "user_someoneelse", "necklace-7")

	require.NoError(t, f.store.Initialize(context.Background()))

	assert.Equal(t, []string{"cuff-3", "ring-101"}, f.store.Liked())
	for _, p := range []string{"ring-101", "necklace-7", "cuff-3", "unknown"} {
		assert.Equal(t, f.remote.HasEntry(testUser, p), f.store.IsLiked(p), p)
	}

	snap := f.board.Snapshot()
	assert.Equal(t, 2, snap.Counter.Value)
	assert.True(t, snap.Counter.Visible)
	w, _ := snap.Widget("necklace-7")
	assert.False(t, w.Liked)
	w, _ = snap.Widget("cuff-3")
	assert.True(t, w.Liked)
	assert.Equal(t, projection.GlyphLiked, w.Glyph)
}

func TestInitialize_FailureIsNonFatal(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "ring-101")
	f.remote.failOn("ListLiked", errNetwork)

	err := f.store.Initialize(context.Background())

	assert.ErrorIs(t, err, errNetwork)
	assert.Zero(t, f.store.Count())
	assert.False(t, f.board.Snapshot().Counter.Visible, "projections refreshed even on failure")
	assert.Empty(t, f.toasts.Pending(fixedNow), "load failures are silent")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.loadFailures))
}

func TestInitialize_FailedReloadKeepsState(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t, testUser, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))

	f.remote.failOn("ListLiked", errNetwork)
	require.Error(t, f.store.Initialize(context.Background()))

	assert.True(t, f.store.IsLiked("ring-101"))
}

// ============================================================================
// Reads
// ============================================================================

func TestIsLiked_Idempotent(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t, testUser, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))

	for range 5 {
		assert.True(t, f.store.IsLiked("ring-101"))
		assert.False(t, f.store.IsLiked("cuff-3"))
	}
	assert.Zero(t, f.remote.count("InsertEntry")+f.remote.count("DeleteEntry"))
}

// ============================================================================
// Add / Remove
// ============================================================================

func TestAdd_Success(t *testing.T) {
	f := newStoreFixture(t, "ring-101", "ring-101", "cuff-3")
	require.NoError(t, f.store.Initialize(context.Background()))

	res := f.store.Add(context.Background(), "ring-101")

	require.NoError(t, res.Err)
	assert.Equal(t, domain.OpAdd, res.Op)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.Count)
	assert.True(t, f.store.IsLiked("ring-101"))
	assert.Equal(t, 1, f.store.Count())
	assert.True(t, f.remote.HasEntry(testUser, "ring-101"))
	assert.Equal(t, 1, f.counter(t, "ring-101"))

	snap := f.board.Snapshot()
	assert.Equal(t, 1, snap.Counter.Value)
	assert.True(t, snap.Counter.Visible)
	for _, w := range snap.Widgets {
		assert.Equal(t, w.ProductID == "ring-101", w.Liked, w.ProductID)
	}

	toast := f.lastToast(t)
	assert.Equal(t, domain.NotifySuccess, toast.Kind)
	assert.Equal(t, domain.MsgAdded, toast.Message)
	assert.Equal(t, fixedNow.Add(domain.ToastTTL), toast.ExpiresAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.mutations.WithLabelValues("add", outcomeApplied)))
	assert.Zero(t, f.guard.Held())
}

func TestAdd_RemoteFailureLeavesStateUntouched(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "cuff-3")
	require.NoError(t, f.store.Initialize(context.Background()))
	before := f.store.Liked()
	f.remote.failOn("InsertEntry", errNetwork)

	res := f.store.Add(context.Background(), "ring-101")

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errNetwork)
	assert.False(t, res.Liked)
	assert.Equal(t, before, f.store.Liked())
	assert.Zero(t, f.remote.count("LikeCount"), "counter skipped after failed insert")
	assert.Zero(t, f.remote.count("SetLikeCount"))

	w, _ := f.board.Snapshot().Widget("ring-101")
	assert.False(t, w.Liked)

	toast := f.lastToast(t)
	assert.Equal(t, domain.NotifyError, toast.Kind)
	assert.Equal(t, domain.MsgAddFailed, toast.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.mutations.WithLabelValues("add", outcomeFailed)))
}

func TestRemove_RemoteFailureLeavesStateUntouched(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))
	f.remote.failOn("DeleteEntry", errNetwork)

	res := f.store.Remove(context.Background(), "ring-101")

	assert.ErrorIs(t, res.Err, errNetwork)
	assert.True(t, f.store.IsLiked("ring-101"))
	assert.True(t, f.remote.HasEntry(testUser, "ring-101"))
	assert.Equal(t, domain.MsgRemoveFailed, f.lastToast(t).Message)
}

func TestAdd_AlreadyPresentConverges(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))
	// Another tab liked it after this session loaded.
	f.seed(t, testUser, "ring-101")

	res := f.store.Add(context.Background(), "ring-101")

	require.NoError(t, res.Err)
	assert.True(t, f.store.IsLiked("ring-101"))
	assert.Zero(t, f.remote.count("SetLikeCount"), "counter not counted twice")
	assert.Equal(t, []string{"ring-101"}, f.store.Drifted())
	assert.Equal(t, domain.MsgAdded, f.lastToast(t).Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.mutations.WithLabelValues("add", outcomeConverged)))
}

func TestRemove_AlreadyAbsentConverges(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))
	require.NoError(t, f.remote.Store.DeleteEntry(context.Background(), testUser, "ring-101"))

	res := f.store.Remove(context.Background(), "ring-101")

	require.NoError(t, res.Err)
	assert.False(t, f.store.IsLiked("ring-101"))
	assert.Zero(t, f.remote.count("SetLikeCount"))
	assert.Equal(t, []string{"ring-101"}, f.store.Drifted())
	w, _ := f.board.Snapshot().Widget("ring-101")
	assert.False(t, w.Liked)
}

// committedInsertRemote commits the first insert but reports a transport
// failure, so the retried request sees the row already present.
type committedInsertRemote struct {
	*fakeRemote
	attempts int
}

func (r *committedInsertRemote) InsertEntry(ctx context.Context, user, product string) error {
	r.attempts++
	if r.attempts == 1 {
		if err := r.fakeRemote.InsertEntry(ctx, user, product); err != nil {
			return err
		}
	}
	return r.fakeRemote.InsertEntry(ctx, user, product)
}

func TestAdd_RetriedInsertLeavesCounterForReconciliation(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	rs := &committedInsertRemote{fakeRemote: f.remote}
	f.store = New(testUser, rs, f.guard, f.board, f.toasts, newTestLogger(), WithMetrics(f.metrics))

	res := f.store.Add(context.Background(), "ring-101")

	require.NoError(t, res.Err)
	assert.True(t, f.store.IsLiked("ring-101"))
	assert.Equal(t, 0, f.counter(t, "ring-101"), "converged insert does not bump the counter")
	assert.Equal(t, []string{"ring-101"}, f.store.Drifted())

	done, err := f.store.ReconcileDrifted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, f.counter(t, "ring-101"))
	assert.Empty(t, f.store.Drifted())
}

func TestRemove_RetriedDeleteLeavesCounterForReconciliation(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "ring-101")
	require.NoError(t, f.remote.Store.SetLikeCount(context.Background(), "ring-101", 1))
	require.NoError(t, f.store.Initialize(context.Background()))
	// An earlier attempt of this delete committed before its response was lost.
	require.NoError(t, f.remote.Store.DeleteEntry(context.Background(), testUser, "ring-101"))

	require.NoError(t, f.store.Remove(context.Background(), "ring-101").Err)
	assert.Equal(t, 1, f.counter(t, "ring-101"))

	_, err := f.store.ReconcileDrifted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.counter(t, "ring-101"))
}

func TestMutations_RejectEmptyProductID(t *testing.T) {
	f := newStoreFixture(t)

	for _, res := range []domain.Result{
		f.store.Add(context.Background(), ""),
		f.store.Remove(context.Background(), ""),
		f.store.Toggle(context.Background(), ""),
	} {
		assert.ErrorIs(t, res.Err, apperrors.ErrInvalidInput)
	}
	_, err := f.store.ReconcileCounter(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Zero(t, f.remote.count("InsertEntry")+f.remote.count("DeleteEntry"))
	assert.Empty(t, f.toasts.Pending(fixedNow))
}

// ============================================================================
// Toggle
// ============================================================================

func TestToggle_OnLikedProductRemoves(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "ring-101", "cuff-3")
	require.NoError(t, f.remote.SetLikeCount(context.Background(), "ring-101", 4))
	require.NoError(t, f.store.Initialize(context.Background()))

	res := f.store.Toggle(context.Background(), "ring-101")

	require.NoError(t, res.Err)
	assert.Equal(t, domain.OpRemove, res.Op)
	assert.False(t, f.store.IsLiked("ring-101"))
	assert.Equal(t, 1, f.store.Count())
	assert.Equal(t, 3, f.counter(t, "ring-101"))
	assert.Equal(t, domain.MsgRemoved, f.lastToast(t).Message)
}

func TestToggle_TwiceRestoresState(t *testing.T) {
	for _, startLiked := range []bool{false, true} {
		f := newStoreFixture(t, "ring-101")
		if startLiked {
			f.seed(t, testUser, "ring-101")
		}
		require.NoError(t, f.store.Initialize(context.Background()))

		require.NoError(t, f.store.Toggle(context.Background(), "ring-101").Err)
		require.NoError(t, f.store.Toggle(context.Background(), "ring-101").Err)

		assert.Equal(t, startLiked, f.store.IsLiked("ring-101"))
		assert.Equal(t, startLiked, f.remote.HasEntry(testUser, "ring-101"))
	}
}

func TestToggle_OverlappingCallIsDropped(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))
	f.remote.holdMutations()

	first := f.store.ToggleAsync(context.Background(), "ring-101")
	<-f.remote.entered

	second := f.store.Toggle(context.Background(), "ring-101")
	assert.ErrorIs(t, second.Err, domain.ErrInFlight)
	assert.Equal(t, 1, f.remote.count("InsertEntry"), "dropped call never reaches the remote")
	assert.Empty(t, f.toasts.Pending(fixedNow), "dropped call shows no toast")

	close(f.remote.gate)
	res := <-first
	require.NoError(t, res.Err)

	_, open := <-first
	assert.False(t, open, "result channel is closed after delivery")

	assert.Equal(t, f.remote.HasEntry(testUser, "ring-101"), f.store.IsLiked("ring-101"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.inFlightRejected))
	assert.Zero(t, f.guard.Held())
}

func TestToggleAsync_IgnoresCallerCancellation(t *testing.T) {
	f := newStoreFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.remote.holdMutations()

	ch := f.store.ToggleAsync(ctx, "cuff-3")
	<-f.remote.entered
	cancel()
	close(f.remote.gate)

	res := <-ch
	require.NoError(t, res.Err)
	assert.True(t, f.store.IsLiked("cuff-3"))
}

func TestToggle_ConcurrentCallsSettleConsistently(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	require.NoError(t, f.store.Initialize(context.Background()))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.store.Toggle(context.Background(), "ring-101")
		}()
	}
	wg.Wait()

	assert.Equal(t, f.remote.HasEntry(testUser, "ring-101"), f.store.IsLiked("ring-101"))
	w, _ := f.board.Snapshot().Widget("ring-101")
	assert.Equal(t, f.store.IsLiked("ring-101"), w.Liked)
	assert.Equal(t, f.store.Count(), f.board.Snapshot().Counter.Value)
}

// ============================================================================
// Counter
// ============================================================================

func TestRemove_CounterNeverNegative(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t, testUser, "ring-101")
	require.NoError(t, f.remote.SetLikeCount(context.Background(), "ring-101", 0))
	require.NoError(t, f.store.Initialize(context.Background()))

	for range 4 {
		require.NoError(t, f.store.Remove(context.Background(), "ring-101").Err)
		assert.GreaterOrEqual(t, f.counter(t, "ring-101"), 0)
	}
	assert.Zero(t, f.counter(t, "ring-101"))
}

func TestAdd_NullCounterStartsAtOne(t *testing.T) {
	f := newStoreFixture(t)

	require.NoError(t, f.store.Add(context.Background(), "necklace-7").Err)

	assert.Equal(t, 1, f.counter(t, "necklace-7"))
}

func TestAdd_CounterFailureKeepsEntryAndMarksDrift(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.remote.failOn("SetLikeCount", errNetwork)

	res := f.store.Add(context.Background(), "ring-101")

	require.NoError(t, res.Err, "counter failures do not fail the mutation")
	assert.True(t, f.store.IsLiked("ring-101"))
	assert.Equal(t, domain.NotifySuccess, f.lastToast(t).Kind)
	assert.Equal(t, []string{"ring-101"}, f.store.Drifted())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.counterFailures))
}

func TestReconcileDrifted_RepairsCounter(t *testing.T) {
	f := newStoreFixture(t)
	events := &mockEvents{}
	f.store = New(testUser, f.remote, f.guard, f.board, f.toasts, newTestLogger(),
		WithMetrics(f.metrics), WithEvents(events))
	f.seed(t, "user_other", "ring-101")

	events.On("PublishItemAdded", mock.Anything, testUser, "ring-101").Return(nil)
	f.remote.failOn("LikeCount", errNetwork)
	require.NoError(t, f.store.Add(context.Background(), "ring-101").Err)
	require.Equal(t, []string{"ring-101"}, f.store.Drifted())

	// Still failing: the product stays drifted.
	done, err := f.store.ReconcileDrifted(context.Background())
	assert.Zero(t, done)
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, []string{"ring-101"}, f.store.Drifted())

	f.remote.failOn("LikeCount", nil)
	events.On("PublishCounterReconciled", mock.Anything, "ring-101", 0, 2).Return(nil)

	done, err = f.store.ReconcileDrifted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Empty(t, f.store.Drifted())
	assert.Equal(t, 2, f.counter(t, "ring-101"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.reconciliations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.reconciliations.WithLabelValues("error")))
	events.AssertExpectations(t)
}

func TestReconcileCounter_UnchangedSkipsWrite(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t, testUser, "cuff-3")
	require.NoError(t, f.remote.Store.SetLikeCount(context.Background(), "cuff-3", 1))

	n, err := f.store.ReconcileCounter(context.Background(), "cuff-3")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.remote.count("SetLikeCount"))
}

// ============================================================================
// Events and tracing
// ============================================================================

func TestEvents_PublishedForConfirmedChangesOnly(t *testing.T) {
	f := newStoreFixture(t)
	events := &mockEvents{}
	f.store = New(testUser, f.remote, f.guard, f.board, f.toasts, newTestLogger(), WithEvents(events))

	events.On("PublishItemAdded", mock.Anything, testUser, "ring-101").Return(errors.New("broker down")).Once()
	events.On("PublishItemRemoved", mock.Anything, testUser, "ring-101").Return(nil).Once()

	require.NoError(t, f.store.Add(context.Background(), "ring-101").Err, "publish failures are only logged")
	require.NoError(t, f.store.Remove(context.Background(), "ring-101").Err)
	// Converged removal: nothing changed remotely.
	require.NoError(t, f.store.Remove(context.Background(), "ring-101").Err)

	f.remote.failOn("InsertEntry", errNetwork)
	require.Error(t, f.store.Add(context.Background(), "ring-101").Err)

	events.AssertExpectations(t)
}

func TestTracing_SpanPerMutation(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newStoreFixture(t)
	f.store = New(testUser, f.remote, f.guard, f.board, f.toasts, newTestLogger(),
		WithTracer(tp.Tracer("test")))

	require.NoError(t, f.store.Initialize(context.Background()))
	require.NoError(t, f.store.Add(context.Background(), "ring-101").Err)
	f.remote.failOn("DeleteEntry", errNetwork)
	require.Error(t, f.store.Remove(context.Background(), "ring-101").Err)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "wishlist.Initialize", spans[0].Name())
	assert.Equal(t, "wishlist.add", spans[1].Name())
	assert.Equal(t, "wishlist.remove", spans[2].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}

func TestProjectOnto_LeavesOwnSurfaceAlone(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	f.seed(t, testUser, "ring-101", "cuff-3")
	require.NoError(t, f.store.Initialize(context.Background()))

	tab := projection.NewBoard(true, "cuff-3", "necklace-7")
	f.store.ProjectOnto(tab)

	snap := tab.Snapshot()
	w, ok := snap.Widget("cuff-3")
	require.True(t, ok)
	assert.True(t, w.Liked)
	w, ok = snap.Widget("necklace-7")
	require.True(t, ok)
	assert.False(t, w.Liked)
	assert.Equal(t, 2, snap.Counter.Value)

	_, ok = f.board.Snapshot().Widget("cuff-3")
	assert.False(t, ok, "store board keeps its own widgets")
}

func TestMutation_ContextNotifierReceivesToast(t *testing.T) {
	f := newStoreFixture(t, "ring-101")
	reqToasts := notify.NewToasts()
	ctx := notify.NewContext(context.Background(), reqToasts)

	require.NoError(t, f.store.Add(ctx, "ring-101").Err)

	toasts := reqToasts.Drain(fixedNow)
	require.Len(t, toasts, 1)
	assert.Equal(t, domain.MsgAdded, toasts[0].Message)
	assert.Empty(t, f.toasts.Drain(fixedNow), "session queue is bypassed")
}
