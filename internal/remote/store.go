// Package remote abstracts the hosted backend store. The store owns all
// user entities (orders, positions, watchlists) plus news and profiles;
// the terminal core only issues point queries and write intents, and
// listens to a change-notification feed for push-invalidation.
package remote

import (
	"context"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// Collection names a remote store collection.
type Collection string

const (
	CollectionOrders     Collection = "orders"
	CollectionPositions  Collection = "positions"
	CollectionWatchlists Collection = "watchlists"
	CollectionNews       Collection = "news"
	CollectionProfiles   Collection = "profiles"
)

// ChangeEvent is a push-invalidation signal: the named collection changed
// for the given user. It carries no row data; consumers re-fetch the
// whole mirror rather than patching.
type ChangeEvent struct {
	Collection Collection
	UserID     string
}

// ChangeListener receives change events.
type ChangeListener func(ChangeEvent)

// Store is the remote store client surface consumed by the core.
type Store interface {
	// Ping probes connectivity. Reaching the server counts as online
	// even when the probe query itself is rejected.
	Ping(ctx context.Context) error

	// Orders returns the user's orders newest-first.
	Orders(ctx context.Context, userID string) ([]models.Order, error)
	// InsertOrder submits an order intent. Fill handling and balance
	// deltas are computed store-side.
	InsertOrder(ctx context.Context, userID string, order models.Order) error

	// Positions returns the user's holdings.
	Positions(ctx context.Context, userID string) ([]models.Position, error)

	// Watchlist returns the user's watched instrument codes.
	Watchlist(ctx context.Context, userID string) ([]string, error)
	AddToWatchlist(ctx context.Context, userID, code string) error
	RemoveFromWatchlist(ctx context.Context, userID, code string) error

	// News returns the newest items, newest-first, up to limit.
	News(ctx context.Context, limit int) ([]models.NewsItem, error)

	// Profile returns the user's profile row.
	Profile(ctx context.Context, userID string) (*models.Profile, error)

	Close() error
}

// ChangeFeed delivers push-invalidation events. The local store emits
// them in-process; the hosted store delivers them over a realtime
// websocket channel.
type ChangeFeed interface {
	SubscribeChanges(l ChangeListener)
}
