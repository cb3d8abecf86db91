// Package mirror maintains local read-mostly mirrors of the remote
// store's user state: positions, orders, and the watchlist. Mirrors are
// replaced wholesale on refresh, never patched, so readers never observe
// a partially populated view. Refreshes are triggered by identity
// changes, push-invalidation events, and explicit post-write requests.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/identity"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/internal/remote"
	"github.com/jinyang756/Wealthgather-exchange/internal/stream"
)

// Reconciler keeps the user mirrors in sync with the remote store.
type Reconciler struct {
	store    remote.Store
	identity identity.Provider
	bus      *stream.Bus
	logger   zerolog.Logger

	fallbackCash float64

	mu          sync.RWMutex
	positions   []models.Position
	orders      []models.Order
	watchlist   []string
	cashBalance float64

	// sessionCancel tears down in-flight fetches for the previous
	// identity so a late response cannot rehydrate the wrong user.
	sessionMu     sync.Mutex
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
}

// New creates a reconciler. It subscribes itself to identity changes and,
// when a change feed is given, to push-invalidation events.
func New(store remote.Store, feed remote.ChangeFeed, ids identity.Provider, bus *stream.Bus, fallbackCash float64, logger zerolog.Logger) *Reconciler {
	r := &Reconciler{
		store:        store,
		identity:     ids,
		bus:          bus,
		logger:       logger.With().Str("component", "reconciler").Logger(),
		fallbackCash: fallbackCash,
		cashBalance:  fallbackCash,
	}

	ids.Subscribe(r.onIdentityChange)
	if feed != nil {
		feed.SubscribeChanges(r.onChangeEvent)
	}

	return r
}

// onIdentityChange clears the mirrors synchronously on logout and starts
// a full refresh on login. Either way the previous identity's in-flight
// fetches are cancelled first.
func (r *Reconciler) onIdentityChange(user *models.User) {
	r.sessionMu.Lock()
	if r.sessionCancel != nil {
		r.sessionCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.sessionCtx = ctx
	r.sessionCancel = cancel
	r.sessionMu.Unlock()

	if user == nil {
		r.clearMirrors()
		return
	}

	go func() {
		if err := r.RefreshAll(ctx); err != nil {
			r.logger.Warn().Err(err).Str("user", user.ID).Msg("initial mirror refresh failed")
		}
	}()
}

// onChangeEvent handles a push-invalidation: a full refresh of the named
// collection's mirror, never a targeted patch. Events for other users
// are ignored.
func (r *Reconciler) onChangeEvent(ev remote.ChangeEvent) {
	user := r.identity.Current()
	if user == nil || (ev.UserID != "" && ev.UserID != user.ID) {
		return
	}

	r.sessionMu.Lock()
	ctx := r.sessionCtx
	r.sessionMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		var err error
		switch ev.Collection {
		case remote.CollectionOrders:
			err = r.RefreshOrders(ctx)
		case remote.CollectionPositions:
			err = r.RefreshPositions(ctx)
		case remote.CollectionWatchlists:
			err = r.RefreshWatchlist(ctx)
		case remote.CollectionProfiles:
			err = r.RefreshProfile(ctx)
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("collection", string(ev.Collection)).Msg("push-invalidation refresh failed")
		}
	}()
}

func (r *Reconciler) clearMirrors() {
	r.mu.Lock()
	r.positions = nil
	r.orders = nil
	r.watchlist = nil
	r.cashBalance = r.fallbackCash
	r.mu.Unlock()

	r.bus.Publish(stream.TopicPositionsChanged, nil)
	r.bus.Publish(stream.TopicOrdersChanged, nil)
	r.bus.Publish(stream.TopicWatchlistChanged, nil)
}

// currentUser returns the identity plus its generation for fencing.
func (r *Reconciler) currentUser() (*models.User, uint64, error) {
	user := r.identity.Current()
	if user == nil {
		return nil, 0, apperrors.ErrNotAuthenticated
	}
	return user, r.identity.Generation(), nil
}

// RefreshAll re-fetches every mirror for the current identity.
func (r *Reconciler) RefreshAll(ctx context.Context) error {
	if err := r.RefreshPositions(ctx); err != nil {
		return err
	}
	if err := r.RefreshOrders(ctx); err != nil {
		return err
	}
	if err := r.RefreshWatchlist(ctx); err != nil {
		return err
	}
	return r.RefreshProfile(ctx)
}

// RefreshPositions replaces the positions mirror wholesale.
func (r *Reconciler) RefreshPositions(ctx context.Context) error {
	user, gen, err := r.currentUser()
	if err != nil {
		return err
	}

	positions, err := r.store.Positions(ctx, user.ID)
	if err != nil {
		return err
	}
	if r.identity.Generation() != gen {
		return apperrors.ErrStaleResponse
	}

	r.mu.Lock()
	r.positions = positions
	r.mu.Unlock()

	r.bus.Publish(stream.TopicPositionsChanged, nil)
	return nil
}

// RefreshOrders replaces the orders mirror wholesale, newest-first.
func (r *Reconciler) RefreshOrders(ctx context.Context) error {
	user, gen, err := r.currentUser()
	if err != nil {
		return err
	}

	orders, err := r.store.Orders(ctx, user.ID)
	if err != nil {
		return err
	}
	if r.identity.Generation() != gen {
		return apperrors.ErrStaleResponse
	}

	r.mu.Lock()
	r.orders = orders
	r.mu.Unlock()

	r.bus.Publish(stream.TopicOrdersChanged, nil)
	return nil
}

// RefreshWatchlist replaces the watchlist mirror wholesale.
func (r *Reconciler) RefreshWatchlist(ctx context.Context) error {
	user, gen, err := r.currentUser()
	if err != nil {
		return err
	}

	codes, err := r.store.Watchlist(ctx, user.ID)
	if err != nil {
		return err
	}
	if r.identity.Generation() != gen {
		return apperrors.ErrStaleResponse
	}

	r.mu.Lock()
	r.watchlist = codes
	r.mu.Unlock()

	r.bus.Publish(stream.TopicWatchlistChanged, nil)
	return nil
}

// RefreshProfile re-fetches the cash balance so server-computed balance
// deltas show up after a trade.
func (r *Reconciler) RefreshProfile(ctx context.Context) error {
	user, gen, err := r.currentUser()
	if err != nil {
		return err
	}

	profile, err := r.store.Profile(ctx, user.ID)
	if err != nil {
		return err
	}
	if r.identity.Generation() != gen {
		return apperrors.ErrStaleResponse
	}

	r.mu.Lock()
	r.cashBalance = profile.CashBalance
	r.mu.Unlock()
	return nil
}

// Positions returns a copy of the positions mirror.
func (r *Reconciler) Positions() []models.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Position(nil), r.positions...)
}

// Orders returns a copy of the orders mirror, newest-first.
func (r *Reconciler) Orders() []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Order(nil), r.orders...)
}

// WatchlistCodes returns a copy of the watchlist mirror.
func (r *Reconciler) WatchlistCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.watchlist...)
}

// InWatchlist reports whether the code is in the watchlist mirror.
func (r *Reconciler) InWatchlist(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.watchlist {
		if c == code {
			return true
		}
	}
	return false
}

// CashBalance returns the mirrored cash balance.
func (r *Reconciler) CashBalance() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cashBalance
}

// ToggleWatchlist adds or removes a code. The local mirror updates
// optimistically before the remote result is known; a remote failure is
// surfaced to the caller but the optimistic change stays (the next
// watchlist refresh converges the mirror to the store).
func (r *Reconciler) ToggleWatchlist(ctx context.Context, code string) error {
	user, _, err := r.currentUser()
	if err != nil {
		return err
	}

	removing := r.InWatchlist(code)

	// Optimistic local mutation
	r.mu.Lock()
	if removing {
		next := make([]string, 0, len(r.watchlist))
		for _, c := range r.watchlist {
			if c != code {
				next = append(next, c)
			}
		}
		r.watchlist = next
	} else {
		r.watchlist = append(append([]string(nil), r.watchlist...), code)
	}
	r.mu.Unlock()
	r.bus.Publish(stream.TopicWatchlistChanged, nil)

	if removing {
		err = r.store.RemoveFromWatchlist(ctx, user.ID, code)
	} else {
		err = r.store.AddToWatchlist(ctx, user.ID, code)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("code", code).Msg("watchlist write failed, local mirror kept")
		return err
	}
	return nil
}

// Execute implements guard.Executor: it submits the intent to the remote
// store and then explicitly refreshes the mirrors that carry
// server-computed results. No optimistic order row is ever applied; a
// failed insert leaves the orders mirror untouched.
func (r *Reconciler) Execute(ctx context.Context, intent models.OrderIntent) error {
	user, _, err := r.currentUser()
	if err != nil {
		return err
	}

	order := models.Order{
		ID:             uuid.NewString(),
		InstrumentCode: intent.InstrumentCode,
		InstrumentName: intent.InstrumentName,
		Side:           intent.Side,
		Price:          intent.Price,
		Quantity:       intent.Quantity,
		Status:         models.OrderStatusFilled, // demo store fills immediately
		CreatedAt:      time.Now(),
	}

	if err := r.store.InsertOrder(ctx, user.ID, order); err != nil {
		return apperrors.NewOrderError(intent.InstrumentCode, string(intent.Side), "insert failed", err)
	}

	r.logger.Info().
		Str("code", intent.InstrumentCode).
		Str("side", string(intent.Side)).
		Float64("price", intent.Price).
		Int64("quantity", intent.Quantity).
		Msg("order submitted")

	// Post-write refresh picks up fill price and balance deltas.
	if err := r.RefreshOrders(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("post-trade orders refresh failed")
	}
	if err := r.RefreshPositions(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("post-trade positions refresh failed")
	}
	if err := r.RefreshProfile(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("post-trade profile refresh failed")
	}
	return nil
}
