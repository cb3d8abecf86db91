// Package book synthesizes a presentation-grade bid/ask ladder from a
// single last-traded price. It is not a real order book: ladder volumes
// are randomized per call and carry no ordering guarantee between reads.
// Only the touch levels are stable enough to price against.
package book

import (
	"math"
	"math/rand"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

const (
	levels     = 5
	spreadRate = 0.002
	minSpread  = 0.01
)

// Synthesizer builds order book ladders. Randomness is injected so tests
// can assert exact volumes.
type Synthesizer struct {
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer using the given random source.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	return &Synthesizer{rng: rng}
}

// Spread returns the per-level price step for the given last price.
func Spread(price float64) float64 {
	return math.Max(minSpread, price*spreadRate)
}

// Synthesize builds a 5-level ladder around the last price. Asks ascend
// from the touch (Asks[0] is the lowest ask), bids descend from the touch
// (Bids[0] is the highest bid). Volumes carry a mild bias toward the
// touch level.
func (s *Synthesizer) Synthesize(price float64) models.OrderBook {
	spread := Spread(price)

	asks := make([]models.OrderBookLevel, levels)
	bids := make([]models.OrderBookLevel, levels)

	for i := 0; i < levels; i++ {
		asks[i] = models.OrderBookLevel{
			Price:  price + spread*float64(i+1),
			Volume: s.levelVolume(i),
		}
		bids[i] = models.OrderBookLevel{
			Price:  price - spread*float64(i+1),
			Volume: s.levelVolume(i),
		}
	}

	return models.OrderBook{Asks: asks, Bids: bids}
}

// levelVolume draws a randomized volume for the level at distance i from
// the touch (i = 0 is the touch).
func (s *Synthesizer) levelVolume(i int) int64 {
	return int64(s.rng.Intn(500)) + int64(levels-i)*100
}
