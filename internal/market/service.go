// Package market is the facade over the data synchronization core. It
// owns all live market state (instruments, indices, derived events),
// exposes read-only snapshot accessors to the presentation layer, and
// forwards user intents into the slippage guard and the reconciler.
package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jinyang756/Wealthgather-exchange/internal/book"
	"github.com/jinyang756/Wealthgather-exchange/internal/config"
	"github.com/jinyang756/Wealthgather-exchange/internal/derive"
	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/guard"
	"github.com/jinyang756/Wealthgather-exchange/internal/indicator"
	"github.com/jinyang756/Wealthgather-exchange/internal/mirror"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/internal/quote"
	"github.com/jinyang756/Wealthgather-exchange/internal/remote"
	"github.com/jinyang756/Wealthgather-exchange/internal/sched"
	"github.com/jinyang756/Wealthgather-exchange/internal/stream"
	"github.com/jinyang756/Wealthgather-exchange/pkg/utils"
)

// Service wires the market data pipeline together.
type Service struct {
	cfg    config.MarketConfig
	logger zerolog.Logger
	bus    *stream.Bus

	feed       *quote.Client
	normalizer *quote.Normalizer
	deriver    *derive.Generator
	books      *book.Synthesizer
	macd       *indicator.MACD
	guard      *guard.Guard
	reconciler *mirror.Reconciler
	store      remote.Store
	latency    *sched.LatencyMonitor

	mu            sync.RWMutex
	instruments   []models.Instrument
	indices       []models.IndexQuote
	blockTrade    *models.BlockTrade
	ipos          []models.IPOCandidate
	news          []models.NewsItem
	feedConnected bool
	storeOnline   bool

	// Poll ordering: each cycle takes a sequence number before its
	// round-trip; a completion older than the last applied one is
	// dropped instead of clobbering newer state.
	seqMu      sync.Mutex
	nextSeq    uint64
	appliedSeq uint64
}

// Options holds the collaborators a Service needs.
type Options struct {
	Config     config.MarketConfig
	Trading    config.TradingConfig
	Bus        *stream.Bus
	Store      remote.Store
	Reconciler *mirror.Reconciler
	Feed       *quote.Client
	Rand       *rand.Rand
	Logger     zerolog.Logger
}

// NewService creates the market facade.
func NewService(opts Options) *Service {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// The poll pipeline and the per-access synthesizers run on different
	// goroutines, so each component gets its own lock-guarded stream
	// seeded from the injected source.
	childRand := func() *rand.Rand {
		return utils.NewLockedRand(rng.Int63())
	}

	s := &Service{
		cfg:        opts.Config,
		logger:     opts.Logger.With().Str("component", "market").Logger(),
		bus:        opts.Bus,
		feed:       opts.Feed,
		normalizer: quote.NewNormalizer(opts.Config.IndexCodes, opts.Config.HistoryPoints, childRand()),
		deriver:    derive.NewGenerator(childRand()),
		books:      book.NewSynthesizer(childRand()),
		macd:       indicator.NewMACD(),
		reconciler: opts.Reconciler,
		store:      opts.Store,
		latency:    sched.NewLatencyMonitor(childRand()),
		// Optimistic until the first poll settles it either way.
		feedConnected: true,
	}
	s.guard = guard.New(opts.Trading.SlippageThresholdPercent, opts.Reconciler, opts.Logger)
	return s
}

// Start registers the core's timers on the scheduler. The timers stop
// when ctx is cancelled.
func (s *Service) Start(ctx context.Context, scheduler *sched.Scheduler) {
	scheduler.Every(ctx, "quote-poll", s.cfg.PollInterval, s.PollQuotes)
	scheduler.Every(ctx, "news-refresh", s.cfg.NewsInterval, s.RefreshNews)
	scheduler.Every(ctx, "store-health", s.cfg.HealthInterval, s.CheckStoreHealth)
	scheduler.Every(ctx, "latency-display", s.cfg.LatencyInterval, s.stepLatency)
}

// PollQuotes runs one quote ingestion cycle: fetch, normalize, derive,
// apply. Any failure keeps the previous cycle's state intact; a stale
// completion (superseded by a newer applied cycle) is discarded.
func (s *Service) PollQuotes(ctx context.Context) error {
	seq := s.takeSeq()

	symbols := append(append([]string(nil), s.cfg.IndexCodes...), s.cfg.InstrumentCodes...)
	batch, err := s.feed.Fetch(ctx, symbols)
	if err != nil {
		s.setFeedConnected(false)
		s.logger.Warn().Err(err).Msg("quote poll failed, retaining previous state")
		return err
	}

	instruments, indices := s.normalizer.Normalize(batch)
	blockTrade := s.deriver.BlockTrade(instruments)
	ipos := s.deriver.IPOCandidates(instruments)

	if !s.applySeq(seq) {
		s.logger.Debug().Uint64("seq", seq).Msg("discarding stale poll response")
		return apperrors.ErrStaleResponse
	}

	// Publish the fully constructed cycle in one swap.
	s.mu.Lock()
	s.instruments = instruments
	s.indices = indices
	s.blockTrade = blockTrade
	s.ipos = ipos
	s.feedConnected = true
	s.mu.Unlock()

	s.bus.Publish(stream.TopicQuotesUpdated, nil)
	return nil
}

func (s *Service) takeSeq() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// applySeq claims the right to apply the cycle with the given sequence
// number. Returns false when a newer cycle already applied.
func (s *Service) applySeq(seq uint64) bool {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if seq <= s.appliedSeq {
		return false
	}
	s.appliedSeq = seq
	return true
}

func (s *Service) setFeedConnected(ok bool) {
	s.mu.Lock()
	changed := s.feedConnected != ok
	s.feedConnected = ok
	s.mu.Unlock()
	if changed {
		s.bus.Publish(stream.TopicHealthChanged, nil)
	}
}

// RefreshNews re-fetches the news mirror. On failure the canned fallback
// headlines are shown instead of an empty pane.
func (s *Service) RefreshNews(ctx context.Context) error {
	items, err := s.store.News(ctx, 10)
	if err != nil {
		s.logger.Warn().Err(err).Msg("news refresh failed, using fallback items")
		items = fallbackNews()
	}

	s.mu.Lock()
	s.news = items
	s.mu.Unlock()

	s.bus.Publish(stream.TopicNewsUpdated, nil)
	return nil
}

// CheckStoreHealth probes the remote store. This flag is independent of
// the quote feed connectivity flag and only this check updates it.
func (s *Service) CheckStoreHealth(ctx context.Context) error {
	err := s.store.Ping(ctx)

	s.mu.Lock()
	changed := s.storeOnline != (err == nil)
	s.storeOnline = err == nil
	s.mu.Unlock()

	if changed {
		s.bus.Publish(stream.TopicHealthChanged, nil)
	}
	return err
}

func (s *Service) stepLatency(_ context.Context) error {
	s.bus.Publish(stream.TopicLatencyUpdated, s.latency.Step())
	return nil
}

// Instruments returns a copy of the live instrument set.
func (s *Service) Instruments() []models.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Instrument(nil), s.instruments...)
}

// Instrument returns the live instrument with the given code.
func (s *Service) Instrument(code string) (models.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inst := range s.instruments {
		if inst.Code == code {
			return inst, true
		}
	}
	return models.Instrument{}, false
}

// Indices returns a copy of the live index quotes.
func (s *Service) Indices() []models.IndexQuote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.IndexQuote(nil), s.indices...)
}

// Watchlist joins the watchlist mirror against the live instrument set.
func (s *Service) Watchlist() []models.Instrument {
	codes := s.reconciler.WatchlistCodes()
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var watched []models.Instrument
	for _, inst := range s.instruments {
		if _, ok := set[inst.Code]; ok {
			watched = append(watched, inst)
		}
	}
	return watched
}

// BlockTrade returns the cycle's synthetic block trade, or nil before the
// first successful poll.
func (s *Service) BlockTrade() *models.BlockTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.blockTrade == nil {
		return nil
	}
	bt := *s.blockTrade
	return &bt
}

// IPOCandidates returns the cycle's subscription candidates.
func (s *Service) IPOCandidates() []models.IPOCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.IPOCandidate(nil), s.ipos...)
}

// News returns the mirrored news items, newest-first.
func (s *Service) News() []models.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NewsItem(nil), s.news...)
}

// FeedConnected reports quote feed connectivity.
func (s *Service) FeedConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedConnected
}

// StoreOnline reports remote store health.
func (s *Service) StoreOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storeOnline
}

// LatencyMs returns the simulated latency reading.
func (s *Service) LatencyMs() int {
	return s.latency.Current()
}

// OrderBook synthesizes the 5-level ladder for an instrument. Recomputed
// on every access; two nearby reads may differ in volumes.
func (s *Service) OrderBook(code string) (models.OrderBook, error) {
	inst, ok := s.Instrument(code)
	if !ok {
		return models.OrderBook{}, apperrors.ErrInstrumentNotFound
	}
	return s.books.Synthesize(inst.Price), nil
}

// Indicators computes the MACD series over an instrument's history.
// Recomputed per access, never cached.
func (s *Service) Indicators(code string) ([]models.IndicatorPoint, error) {
	inst, ok := s.Instrument(code)
	if !ok {
		return nil, apperrors.ErrInstrumentNotFound
	}
	return s.macd.Compute(inst.PriceHistory), nil
}

// Positions returns the positions mirror with market value and
// unrealized PnL joined against live prices. The join is recomputed per
// access and never persisted.
func (s *Service) Positions() []models.Position {
	positions := s.reconciler.Positions()
	for i, p := range positions {
		if inst, ok := s.Instrument(p.InstrumentCode); ok {
			positions[i] = p.Valued(inst.Price)
		}
	}
	return positions
}

// Orders returns the orders mirror, newest-first.
func (s *Service) Orders() []models.Order {
	return s.reconciler.Orders()
}

// CashBalance returns the mirrored cash balance.
func (s *Service) CashBalance() float64 {
	return s.reconciler.CashBalance()
}

// SubmitOrder evaluates the intent through the slippage guard. The
// result either reports submission, a pending confirmation with the
// deviation details, or a silent no-op for empty intents.
func (s *Service) SubmitOrder(ctx context.Context, intent models.OrderIntent) (guard.Result, error) {
	if intent.Quantity <= 0 || intent.Price <= 0 {
		return guard.Result{}, nil
	}

	bk, err := s.OrderBook(intent.InstrumentCode)
	if err != nil {
		return guard.Result{}, err
	}
	return s.guard.Submit(ctx, intent, bk)
}

// ConfirmOrder forwards the intent held by the guard.
func (s *Service) ConfirmOrder(ctx context.Context) (guard.Result, error) {
	return s.guard.Confirm(ctx)
}

// CancelOrder drops the intent held by the guard.
func (s *Service) CancelOrder() {
	s.guard.Cancel()
}

// GuardState exposes the guard phase for the presentation layer.
func (s *Service) GuardState() guard.State {
	return s.guard.State()
}

// ToggleWatchlist adds or removes a code via the reconciler's optimistic
// path.
func (s *Service) ToggleWatchlist(ctx context.Context, code string) error {
	return s.reconciler.ToggleWatchlist(ctx, code)
}

// fallbackNews returns the canned headlines shown when the news
// collection is unreachable.
func fallbackNews() []models.NewsItem {
	now := time.Now()
	return []models.NewsItem{
		{ID: "1", Title: "外资机构：A股估值处于历史低位，建议超配", Time: now, URL: "#", Type: "report"},
		{ID: "2", Title: "央行：将继续保持货币政策稳健，支持实体经济", Time: now, URL: "#", Type: "news"},
		{ID: "3", Title: "新能源板块早盘走强，宁德时代涨超3%", Time: now, URL: "#", Type: "notice"},
	}
}
