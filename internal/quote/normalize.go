package quote

import (
	"math"
	"math/rand"
	"time"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

const (
	// historyJitterSpan is the full width of the jitter band as a
	// fraction of the live price. Draws are centered on zero, so each
	// point deviates from the live price by at most half the span
	// (±0.5%).
	historyJitterSpan = 0.01
	// historyVolumeDiv splits the reported daily volume across points.
	historyVolumeDiv = 200
)

// Normalizer partitions a raw feed batch into instruments and index
// quotes, and synthesizes each instrument's short intraday history. The
// history is not a true feed: N points one synthetic minute apart ending
// now, jittered around the live price. All randomness goes through the
// injected source so tests can pin exact outputs.
type Normalizer struct {
	indexCodes    map[string]struct{}
	historyPoints int
	rng           *rand.Rand
	now           func() time.Time
}

// NewNormalizer creates a normalizer. Codes in indexCodes become
// IndexQuotes; everything else becomes an Instrument.
func NewNormalizer(indexCodes []string, historyPoints int, rng *rand.Rand) *Normalizer {
	set := make(map[string]struct{}, len(indexCodes))
	for _, c := range indexCodes {
		set[c] = struct{}{}
	}
	return &Normalizer{
		indexCodes:    set,
		historyPoints: historyPoints,
		rng:           rng,
		now:           time.Now,
	}
}

// WithClock overrides the normalizer's clock. Test hook.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize partitions a raw batch. Output order follows input order
// within each partition; downstream derivation depends on that.
func (n *Normalizer) Normalize(batch []RawQuote) ([]models.Instrument, []models.IndexQuote) {
	instruments := make([]models.Instrument, 0, len(batch))
	indices := make([]models.IndexQuote, 0, 4)

	for _, q := range batch {
		name := DisplayName(q.Symbol, q.ShortName)

		if _, isIndex := n.indexCodes[q.Symbol]; isIndex {
			indices = append(indices, models.IndexQuote{
				Code:          q.Symbol,
				DisplayName:   name,
				Value:         q.Price,
				ChangePercent: q.ChangePercent,
				ChangeAmount:  q.ChangeAmount,
			})
			continue
		}

		instruments = append(instruments, models.Instrument{
			Code:          q.Symbol,
			DisplayName:   name,
			Price:         q.Price,
			ChangePercent: round2(q.ChangePercent),
			ChangeAmount:  round2(q.ChangeAmount),
			Volume:        q.Volume,
			High:          q.High,
			Low:           q.Low,
			Open:          q.Open,
			PrevClose:     q.PrevClose,
			PriceHistory:  n.synthesizeHistory(q),
		})
	}

	return instruments, indices
}

// synthesizeHistory builds the N-point synthetic minute series ending now.
func (n *Normalizer) synthesizeHistory(q RawQuote) []models.PricePoint {
	now := n.now()
	points := make([]models.PricePoint, n.historyPoints)

	for i := range points {
		offset := time.Duration(n.historyPoints-i) * time.Minute
		points[i] = models.PricePoint{
			Timestamp: now.Add(-offset),
			Value:     q.Price + (n.rng.Float64()-0.5)*(q.Price*historyJitterSpan),
			Volume:    int64(float64(q.Volume) / historyVolumeDiv * n.rng.Float64()),
		}
	}

	return points
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
