// Package derive generates secondary market events from live instrument
// prices. The output is presentation-plausible synthetic data, not a real
// feed: each cycle's result fully replaces the prior cycle's, so the
// visible lists stay small and bounded instead of accumulating.
package derive

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

const (
	minDiscountPercent = 2.0
	maxDiscountPercent = 7.0
	minLots            = 10
	maxLots            = 60
	ipoCandidates      = 3
)

// Generator derives block trades and IPO candidates from normalized
// instruments. Randomness is injected so tests can assert exact outputs.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator using the given random source.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng, now: time.Now}
}

// WithClock overrides the generator's clock. Test hook.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// BlockTrade derives exactly one synthetic block trade from the given
// instruments, or nil when the set is empty. The pick is uniform, the
// discount uniform in [2.0, 7.0] percent, and the lot volume uniform in
// [10, 60) ten-thousand-share lots.
func (g *Generator) BlockTrade(instruments []models.Instrument) *models.BlockTrade {
	if len(instruments) == 0 {
		return nil
	}

	inst := instruments[g.rng.Intn(len(instruments))]
	discount := math.Round((g.rng.Float64()*(maxDiscountPercent-minDiscountPercent)+minDiscountPercent)*10) / 10
	lots := int64(g.rng.Intn(maxLots-minLots)) + minLots

	side := models.OrderSideSell
	if g.rng.Float64() > 0.5 {
		side = models.OrderSideBuy
	}

	return &models.BlockTrade{
		ID:              uuid.NewString(),
		InstrumentCode:  inst.Code,
		InstrumentName:  inst.DisplayName,
		Price:           inst.Price * (1 - discount/100),
		VolumeLots:      lots,
		Amount:          inst.Price * float64(lots),
		DiscountPercent: discount,
		Side:            side,
		Time:            g.now(),
	}
}

// IPOCandidates derives up to three subscription candidates from the head
// of the instrument set, in normalizer output order. Issue price is 80%
// of the live price and the PE ratio steps up by 5 per slot.
func (g *Generator) IPOCandidates(instruments []models.Instrument) []models.IPOCandidate {
	n := len(instruments)
	if n > ipoCandidates {
		n = ipoCandidates
	}

	candidates := make([]models.IPOCandidate, 0, n)
	for i := 0; i < n; i++ {
		inst := instruments[i]
		candidates = append(candidates, models.IPOCandidate{
			Name:                inst.DisplayName,
			Code:                inst.Code,
			IssuePrice:          inst.Price * 0.8,
			PERatio:             float64(20 + 5*i),
			SubscriptionCapLots: 1 + 0.5*float64(i),
			Date:                g.now(),
			Status:              models.IPOStatusSubscribe,
		})
	}
	return candidates
}
