package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/identity"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/internal/remote"
	"github.com/jinyang756/Wealthgather-exchange/internal/stream"
)

// fakeStore is an in-memory Store and ChangeFeed for reconciler tests.
type fakeStore struct {
	mu        sync.Mutex
	positions map[string][]models.Position
	orders    map[string][]models.Order
	watchlist map[string][]string
	cash      map[string]float64
	listeners []remote.ChangeListener

	failWrites  bool
	onPositions func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		positions: map[string][]models.Position{},
		orders:    map[string][]models.Order{},
		watchlist: map[string][]string{},
		cash:      map[string]float64{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) SubscribeChanges(l remote.ChangeListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *fakeStore) fire(ev remote.ChangeEvent) {
	f.mu.Lock()
	listeners := append([]remote.ChangeListener(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (f *fakeStore) Orders(_ context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders[userID]...), nil
}

func (f *fakeStore) InsertOrder(_ context.Context, userID string, order models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return apperrors.NewStoreError("orders", "insert", apperrors.ErrStoreUnavailable)
	}
	f.orders[userID] = append([]models.Order{order}, f.orders[userID]...)
	return nil
}

func (f *fakeStore) Positions(_ context.Context, userID string) ([]models.Position, error) {
	f.mu.Lock()
	hook := f.onPositions
	result := append([]models.Position(nil), f.positions[userID]...)
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return result, nil
}

func (f *fakeStore) Watchlist(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.watchlist[userID]...), nil
}

func (f *fakeStore) AddToWatchlist(_ context.Context, userID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return apperrors.NewStoreError("watchlists", "insert", apperrors.ErrStoreUnavailable)
	}
	f.watchlist[userID] = append(f.watchlist[userID], code)
	return nil
}

func (f *fakeStore) RemoveFromWatchlist(_ context.Context, userID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return apperrors.NewStoreError("watchlists", "delete", apperrors.ErrStoreUnavailable)
	}
	next := f.watchlist[userID][:0]
	for _, c := range f.watchlist[userID] {
		if c != code {
			next = append(next, c)
		}
	}
	f.watchlist[userID] = next
	return nil
}

func (f *fakeStore) News(context.Context, int) ([]models.NewsItem, error) {
	return nil, nil
}

func (f *fakeStore) Profile(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cash, ok := f.cash[userID]
	if !ok {
		cash = 500000
	}
	return &models.Profile{UserID: userID, CashBalance: cash}, nil
}

func newTestReconciler(t *testing.T, store *fakeStore) (*Reconciler, *identity.Manager) {
	t.Helper()
	bus := stream.NewBus()
	t.Cleanup(bus.Close)
	ids := identity.NewManager()
	r := New(store, store, ids, bus, 500000, zerolog.Nop())
	return r, ids
}

// signInAndWait signs the user in and waits for the background hydration
// kicked off by the identity change to finish, so tests can mutate the
// fake store without racing it. The profile refresh runs last, so a
// sentinel cash value signals completion.
func signInAndWait(t *testing.T, store *fakeStore, r *Reconciler, ids *identity.Manager, userID string) {
	t.Helper()
	const sentinel = 123456.0
	store.mu.Lock()
	store.cash[userID] = sentinel
	store.mu.Unlock()

	ids.SetUser(&models.User{ID: userID})
	require.Eventually(t, func() bool {
		return r.CashBalance() == sentinel
	}, 2*time.Second, 10*time.Millisecond, "login hydration should complete")
}

func TestLoginPopulatesMirrors(t *testing.T) {
	store := newFakeStore()
	store.positions["user-1"] = []models.Position{{InstrumentCode: "600519.SS", Quantity: 100, AverageCost: 1650}}
	store.orders["user-1"] = []models.Order{{ID: "o1", InstrumentCode: "600519.SS"}}
	store.watchlist["user-1"] = []string{"300750.SZ"}
	store.cash["user-1"] = 330000

	r, ids := newTestReconciler(t, store)
	ids.SetUser(&models.User{ID: "user-1"})

	require.Eventually(t, func() bool {
		return len(r.Positions()) == 1 && len(r.Orders()) == 1 && r.InWatchlist("300750.SZ")
	}, 2*time.Second, 10*time.Millisecond, "login should hydrate all mirrors")
	assert.Equal(t, 330000.0, r.CashBalance())
}

func TestLogoutClearsMirrorsSynchronously(t *testing.T) {
	store := newFakeStore()
	store.positions["user-1"] = []models.Position{{InstrumentCode: "600519.SS", Quantity: 100}}
	store.watchlist["user-1"] = []string{"600519.SS"}

	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")
	require.Eventually(t, func() bool {
		return len(r.Positions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ids.Clear()

	// No waiting: sign-out clears before returning so no view of the
	// previous user's data survives the transition.
	assert.Empty(t, r.Positions())
	assert.Empty(t, r.Orders())
	assert.Empty(t, r.WatchlistCodes())
	assert.Equal(t, 500000.0, r.CashBalance())
}

func TestRefreshReplacesWholesale(t *testing.T) {
	store := newFakeStore()
	store.positions["user-1"] = []models.Position{
		{InstrumentCode: "600519.SS", Quantity: 100},
		{InstrumentCode: "300750.SZ", Quantity: 200},
	}

	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")
	require.Len(t, r.Positions(), 2)

	store.mu.Lock()
	store.positions["user-1"] = []models.Position{{InstrumentCode: "600519.SS", Quantity: 50}}
	store.mu.Unlock()

	require.NoError(t, r.RefreshPositions(context.Background()))
	positions := r.Positions()
	require.Len(t, positions, 1, "refresh must replace, not merge")
	assert.Equal(t, int64(50), positions[0].Quantity)
}

func TestRefreshWithoutUserFails(t *testing.T) {
	r, _ := newTestReconciler(t, newFakeStore())
	err := r.RefreshPositions(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestStaleGenerationDiscarded(t *testing.T) {
	store := newFakeStore()
	store.positions["user-1"] = []models.Position{{InstrumentCode: "600519.SS", Quantity: 100}}

	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")

	// The identity switches while the fetch is in flight; its result
	// belongs to the old generation and must be dropped.
	var fired sync.Once
	store.mu.Lock()
	store.onPositions = func() {
		fired.Do(func() {
			ids.SetUser(&models.User{ID: "user-2"})
		})
	}
	store.mu.Unlock()

	err := r.RefreshPositions(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrStaleResponse)
}

func TestToggleWatchlistOptimistic(t *testing.T) {
	store := newFakeStore()
	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")

	require.NoError(t, r.ToggleWatchlist(context.Background(), "600519.SS"))
	assert.True(t, r.InWatchlist("600519.SS"))

	codes, _ := store.Watchlist(context.Background(), "user-1")
	assert.Contains(t, codes, "600519.SS")

	require.NoError(t, r.ToggleWatchlist(context.Background(), "600519.SS"))
	assert.False(t, r.InWatchlist("600519.SS"))
}

func TestToggleWatchlistKeepsOptimisticStateOnWriteFailure(t *testing.T) {
	store := newFakeStore()
	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")
	store.mu.Lock()
	store.failWrites = true
	store.mu.Unlock()

	err := r.ToggleWatchlist(context.Background(), "600519.SS")
	assert.Error(t, err, "remote failure is surfaced")
	assert.True(t, r.InWatchlist("600519.SS"),
		"optimistic add stays; the next refresh converges the mirror")
}

func TestExecuteSubmitsAndRefreshes(t *testing.T) {
	store := newFakeStore()
	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")

	intent := models.OrderIntent{
		InstrumentCode: "600519.SS",
		InstrumentName: "贵州茅台",
		Side:           models.OrderSideBuy,
		Price:          1700,
		Quantity:       100,
	}
	require.NoError(t, r.Execute(context.Background(), intent))

	orders := r.Orders()
	require.Len(t, orders, 1, "post-write refresh must hydrate the orders mirror")
	assert.Equal(t, models.OrderStatusFilled, orders[0].Status)
	assert.NotEmpty(t, orders[0].ID)
}

func TestExecuteFailureLeavesMirrorUntouched(t *testing.T) {
	store := newFakeStore()
	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")
	store.mu.Lock()
	store.failWrites = true
	store.mu.Unlock()

	err := r.Execute(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		Side:           models.OrderSideBuy,
		Price:          1700,
		Quantity:       100,
	})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Empty(t, r.Orders(), "no optimistic order row is ever applied")
}

func TestChangeEventTriggersCollectionRefresh(t *testing.T) {
	store := newFakeStore()
	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")

	store.mu.Lock()
	store.orders["user-1"] = []models.Order{{ID: "o1"}}
	store.mu.Unlock()

	store.fire(remote.ChangeEvent{Collection: remote.CollectionOrders, UserID: "user-1"})

	require.Eventually(t, func() bool {
		return len(r.Orders()) == 1
	}, 2*time.Second, 10*time.Millisecond, "push invalidation should refresh the orders mirror")
}

func TestChangeEventForOtherUserIgnored(t *testing.T) {
	store := newFakeStore()
	r, ids := newTestReconciler(t, store)
	signInAndWait(t, store, r, ids, "user-1")

	store.mu.Lock()
	store.orders["user-1"] = []models.Order{{ID: "o1"}}
	store.mu.Unlock()

	store.fire(remote.ChangeEvent{Collection: remote.CollectionOrders, UserID: "someone-else"})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, r.Orders(), "another user's change must not touch this session's mirrors")
}

func TestExecuteWithoutUser(t *testing.T) {
	r, _ := newTestReconciler(t, newFakeStore())
	err := r.Execute(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		Side:           models.OrderSideBuy,
		Price:          100,
		Quantity:       10,
	})
	assert.True(t, errors.Is(err, apperrors.ErrNotAuthenticated))
}
