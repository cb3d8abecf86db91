// Package guard gates order submission behind a price deviation check.
// A proposed price too far from the synthesized touch parks the intent in
// an awaiting-confirmation state instead of forwarding it; an explicit
// confirm re-enters the same execution path without a second check.
package guard

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// State is the guard's current phase.
type State string

const (
	StateIdle                 State = "IDLE"
	StateEvaluating           State = "EVALUATING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
)

// Evaluation carries the deviation details exposed to the caller while an
// intent awaits confirmation.
type Evaluation struct {
	ReferencePrice   float64
	DeviationPercent float64
}

// Result reports the outcome of a submit or confirm call.
type Result struct {
	// Submitted is true when the intent was forwarded to the executor.
	Submitted bool
	// Evaluation is set when the intent is parked awaiting confirmation.
	Evaluation *Evaluation
}

// Executor receives intents that passed the guard. The remote state
// reconciler implements this.
type Executor interface {
	Execute(ctx context.Context, intent models.OrderIntent) error
}

// Guard is the slippage confirmation gate. Safe for concurrent use; at
// most one intent is held at a time, and a new submission replaces a
// previously parked one.
type Guard struct {
	mu sync.Mutex

	thresholdPercent float64
	executor         Executor
	logger           zerolog.Logger

	state   State
	pending *models.OrderIntent
	eval    Evaluation
}

// New creates a guard forwarding passed intents to the executor.
func New(thresholdPercent float64, executor Executor, logger zerolog.Logger) *Guard {
	return &Guard{
		thresholdPercent: thresholdPercent,
		executor:         executor,
		logger:           logger.With().Str("component", "slippage-guard").Logger(),
		state:            StateIdle,
	}
}

// State returns the guard's current phase.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Submit evaluates an intent against the book's touch level. A missing
// price or non-positive quantity is a no-op, not an error. Returns the
// evaluation when the deviation exceeds the threshold; the intent is then
// held until Confirm or Cancel.
func (g *Guard) Submit(ctx context.Context, intent models.OrderIntent, bk models.OrderBook) (Result, error) {
	if intent.Quantity <= 0 || intent.Price <= 0 {
		return Result{}, nil
	}

	g.mu.Lock()
	g.state = StateEvaluating

	var reference float64
	if intent.Side == models.OrderSideBuy {
		reference = bk.BestAsk(intent.Price)
	} else {
		reference = bk.BestBid(intent.Price)
	}

	deviation := math.Abs(intent.Price-reference) / reference * 100

	if deviation > g.thresholdPercent {
		held := intent
		g.pending = &held
		g.eval = Evaluation{ReferencePrice: reference, DeviationPercent: deviation}
		g.state = StateAwaitingConfirmation
		eval := g.eval
		g.mu.Unlock()

		g.logger.Warn().
			Str("code", intent.InstrumentCode).
			Float64("price", intent.Price).
			Float64("reference", reference).
			Float64("deviation_pct", deviation).
			Msg("price deviation above threshold, awaiting confirmation")
		return Result{Evaluation: &eval}, nil
	}

	g.pending = nil
	g.state = StateIdle
	g.mu.Unlock()

	return g.forward(ctx, intent)
}

// Confirm forwards the held intent through the pass-through path.
// Confirmed intents are never re-checked. Confirming with nothing held
// is a no-op.
func (g *Guard) Confirm(ctx context.Context) (Result, error) {
	g.mu.Lock()
	if g.state != StateAwaitingConfirmation || g.pending == nil {
		g.mu.Unlock()
		return Result{}, nil
	}
	intent := *g.pending
	g.pending = nil
	g.state = StateIdle
	g.mu.Unlock()

	return g.forward(ctx, intent)
}

// Cancel drops the held intent and returns to idle.
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
	g.state = StateIdle
}

// PendingEvaluation returns the evaluation for the held intent, if any.
func (g *Guard) PendingEvaluation() (Evaluation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAwaitingConfirmation {
		return Evaluation{}, false
	}
	return g.eval, true
}

func (g *Guard) forward(ctx context.Context, intent models.OrderIntent) (Result, error) {
	if err := g.executor.Execute(ctx, intent); err != nil {
		return Result{}, err
	}
	return Result{Submitted: true}, nil
}
