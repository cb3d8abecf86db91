package market

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/config"
	"github.com/jinyang756/Wealthgather-exchange/internal/identity"
	"github.com/jinyang756/Wealthgather-exchange/internal/mirror"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/internal/quote"
	"github.com/jinyang756/Wealthgather-exchange/internal/remote"
	"github.com/jinyang756/Wealthgather-exchange/internal/stream"
)

const feedEnvelope = `{
	"quoteResponse": {
		"result": [
			{"symbol": "000001.SS", "regularMarketPrice": 3100.5, "regularMarketChangePercent": 0.4, "regularMarketChange": 12.3},
			{"symbol": "600519.SS", "regularMarketPrice": 1700.0, "regularMarketChangePercent": 1.2, "regularMarketChange": 20.1, "regularMarketVolume": 2000000},
			{"symbol": "300750.SZ", "regularMarketPrice": 190.0, "regularMarketChangePercent": -0.8, "regularMarketChange": -1.5, "regularMarketVolume": 5000000}
		]
	}
}`

type testHarness struct {
	service  *Service
	identity *identity.Manager
	store    remote.Store
	feedFail *atomic.Bool
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	var feedFail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if feedFail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, feedEnvelope)
	}))
	t.Cleanup(server.Close)

	store, err := remote.NewSQLiteStore(filepath.Join(t.TempDir(), "terminal.db"), 500000)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := stream.NewBus()
	t.Cleanup(bus.Close)
	ids := identity.NewManager()

	// A distinct fallback cash lets tests detect hydration completion.
	reconciler := mirror.New(store, store, ids, bus, 1.0, zerolog.Nop())

	svc := NewService(Options{
		Config: config.MarketConfig{
			FeedURL:         server.URL,
			PollInterval:    3 * time.Second,
			NewsInterval:    30 * time.Second,
			HealthInterval:  30 * time.Second,
			LatencyInterval: time.Second,
			InstrumentCodes: []string{"600519.SS", "300750.SZ"},
			IndexCodes:      []string{"000001.SS"},
			HistoryPoints:   20,
		},
		Trading:    config.TradingConfig{SlippageThresholdPercent: 5.0, InitialCash: 500000},
		Bus:        bus,
		Store:      store,
		Reconciler: reconciler,
		Feed:       quote.NewClient(quote.ClientConfig{BaseURL: server.URL}, zerolog.Nop()),
		Rand:       rand.New(rand.NewSource(11)),
		Logger:     zerolog.Nop(),
	})

	return &testHarness{service: svc, identity: ids, store: store, feedFail: &feedFail}
}

func (h *testHarness) signIn(t *testing.T, userID string) {
	t.Helper()
	h.identity.SetUser(&models.User{ID: userID})
	require.Eventually(t, func() bool {
		return h.service.CashBalance() == 500000
	}, 2*time.Second, 10*time.Millisecond, "login hydration should complete")
}

func TestPollQuotesPopulatesState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.PollQuotes(context.Background()))

	instruments := h.service.Instruments()
	require.Len(t, instruments, 2)
	assert.Equal(t, "600519.SS", instruments[0].Code)
	assert.Equal(t, "贵州茅台", instruments[0].DisplayName)
	assert.Len(t, instruments[0].PriceHistory, 20)

	indices := h.service.Indices()
	require.Len(t, indices, 1)
	assert.Equal(t, "上证指数", indices[0].DisplayName)

	assert.NotNil(t, h.service.BlockTrade(), "each cycle derives a block trade")
	assert.Len(t, h.service.IPOCandidates(), 2, "one candidate per instrument up to three")
	assert.True(t, h.service.FeedConnected())
}

func TestPollQuotesFailureRetainsPreviousCycle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.PollQuotes(context.Background()))
	require.Len(t, h.service.Instruments(), 2)

	h.feedFail.Store(true)
	err := h.service.PollQuotes(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrFeedUnavailable)

	assert.Len(t, h.service.Instruments(), 2, "failed poll keeps the prior cycle's state")
	assert.False(t, h.service.FeedConnected())

	h.feedFail.Store(false)
	require.NoError(t, h.service.PollQuotes(context.Background()))
	assert.True(t, h.service.FeedConnected(), "recovery restores the flag")
}

func TestSequenceFencing(t *testing.T) {
	h := newHarness(t)

	early := h.service.takeSeq()
	late := h.service.takeSeq()

	assert.True(t, h.service.applySeq(late), "newest cycle applies")
	assert.False(t, h.service.applySeq(early), "an older completion is discarded")
	assert.False(t, h.service.applySeq(late), "a cycle applies at most once")
}

func TestOrderBookBracketsLivePrice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.PollQuotes(context.Background()))

	bk, err := h.service.OrderBook("600519.SS")
	require.NoError(t, err)
	require.Len(t, bk.Asks, 5)
	require.Len(t, bk.Bids, 5)
	assert.Greater(t, bk.BestAsk(0), 1700.0)
	assert.Less(t, bk.BestBid(0), 1700.0)

	_, err = h.service.OrderBook("999999.SS")
	assert.ErrorIs(t, err, apperrors.ErrInstrumentNotFound)
}

func TestConcurrentPollsAndSynthesizerReads(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.PollQuotes(context.Background()))

	// The poll pipeline draws randomness on scheduler goroutines while
	// the order book and latency walk draw on presentation accesses.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				err := h.service.PollQuotes(context.Background())
				if err != nil && !errors.Is(err, apperrors.ErrStaleResponse) {
					t.Errorf("poll failed: %v", err)
				}
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := h.service.OrderBook("600519.SS"); err != nil {
					t.Errorf("order book failed: %v", err)
				}
				_ = h.service.stepLatency(context.Background())
				h.service.LatencyMs()
			}
		}()
	}
	wg.Wait()
}

func TestIndicatorsComputedPerAccess(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.PollQuotes(context.Background()))

	points, err := h.service.Indicators("300750.SZ")
	require.NoError(t, err)
	require.Len(t, points, 20)
	assert.Zero(t, points[0].DIF)
	assert.Zero(t, points[0].MACD)

	_, err = h.service.Indicators("999999.SS")
	assert.ErrorIs(t, err, apperrors.ErrInstrumentNotFound)
}

func TestRefreshNewsFallsBackOnStoreFailure(t *testing.T) {
	h := newHarness(t)

	// A closed store makes the news query fail; the canned headlines
	// replace the empty pane.
	require.NoError(t, h.store.Close())
	require.NoError(t, h.service.RefreshNews(context.Background()))

	items := h.service.News()
	require.Len(t, items, 3)
	assert.NotEmpty(t, items[0].Title)
}

func TestCheckStoreHealth(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.service.CheckStoreHealth(context.Background()))
	assert.True(t, h.service.StoreOnline())

	require.NoError(t, h.store.Close())
	assert.Error(t, h.service.CheckStoreHealth(context.Background()))
	assert.False(t, h.service.StoreOnline())
}

func TestSubmitOrderWithinThreshold(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "user-1")
	require.NoError(t, h.service.PollQuotes(context.Background()))

	result, err := h.service.SubmitOrder(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		InstrumentName: "贵州茅台",
		Side:           models.OrderSideBuy,
		Price:          1700.0,
		Quantity:       100,
	})
	require.NoError(t, err)
	assert.True(t, result.Submitted)
	assert.Nil(t, result.Evaluation)

	orders := h.service.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusFilled, orders[0].Status)
	assert.InDelta(t, 500000-1700.0*100, h.service.CashBalance(), 1e-6)
}

func TestSubmitOrderAboveThresholdNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "user-1")
	require.NoError(t, h.service.PollQuotes(context.Background()))

	// The touch ask sits near 1703.4; a limit of 1800 deviates well
	// over five percent.
	result, err := h.service.SubmitOrder(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		InstrumentName: "贵州茅台",
		Side:           models.OrderSideBuy,
		Price:          1800.0,
		Quantity:       100,
	})
	require.NoError(t, err)
	assert.False(t, result.Submitted)
	require.NotNil(t, result.Evaluation)
	assert.Greater(t, result.Evaluation.DeviationPercent, 5.0)
	assert.Empty(t, h.service.Orders(), "nothing reaches the store before confirmation")

	confirmed, err := h.service.ConfirmOrder(context.Background())
	require.NoError(t, err)
	assert.True(t, confirmed.Submitted)
	assert.Len(t, h.service.Orders(), 1)
}

func TestCancelOrderDropsIntent(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "user-1")
	require.NoError(t, h.service.PollQuotes(context.Background()))

	result, err := h.service.SubmitOrder(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		Side:           models.OrderSideBuy,
		Price:          1800.0,
		Quantity:       100,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Evaluation)

	h.service.CancelOrder()
	confirmed, err := h.service.ConfirmOrder(context.Background())
	require.NoError(t, err)
	assert.False(t, confirmed.Submitted)
	assert.Empty(t, h.service.Orders())
}

func TestSubmitOrderEmptyIntentIsNoOp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.PollQuotes(context.Background()))

	result, err := h.service.SubmitOrder(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		Side:           models.OrderSideBuy,
		Price:          1700.0,
		Quantity:       0,
	})
	require.NoError(t, err)
	assert.False(t, result.Submitted)
	assert.Nil(t, result.Evaluation)
}

func TestWatchlistJoinsLiveQuotes(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "user-1")
	require.NoError(t, h.service.PollQuotes(context.Background()))

	require.NoError(t, h.service.ToggleWatchlist(context.Background(), "300750.SZ"))

	watched := h.service.Watchlist()
	require.Len(t, watched, 1)
	assert.Equal(t, "300750.SZ", watched[0].Code)
	assert.Equal(t, 190.0, watched[0].Price)
}

func TestPositionsValuedAgainstLivePrices(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "user-1")
	require.NoError(t, h.service.PollQuotes(context.Background()))

	_, err := h.service.SubmitOrder(context.Background(), models.OrderIntent{
		InstrumentCode: "600519.SS",
		InstrumentName: "贵州茅台",
		Side:           models.OrderSideBuy,
		Price:          1650.0,
		Quantity:       100,
	})
	require.NoError(t, err)

	positions := h.service.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 1700.0*100, positions[0].MarketValue, 1e-6)
	assert.InDelta(t, (1700.0-1650.0)*100, positions[0].UnrealizedPnL, 1e-6)
}
