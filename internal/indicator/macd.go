// Package indicator provides technical indicator calculations over price
// histories. All functions are pure: inputs are never mutated and results
// are freshly allocated parallel series.
package indicator

import (
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// MACD calculates Moving Average Convergence Divergence over an ordered
// price history. The EMAs are seeded with the first price, so index 0
// always carries DIF == MACD == 0.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a MACD calculator with the standard (12, 26, 9) periods.
func NewMACD() *MACD {
	return NewMACDWithPeriods(12, 26, 9)
}

// NewMACDWithPeriods creates a MACD calculator with custom periods.
func NewMACDWithPeriods(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

// Compute returns one IndicatorPoint per input point. An empty input
// yields an empty output; a single point yields DIF = MACD = 0.
func (m *MACD) Compute(points []models.PricePoint) []models.IndicatorPoint {
	if len(points) == 0 {
		return []models.IndicatorPoint{}
	}

	result := make([]models.IndicatorPoint, len(points))

	emaFast := points[0].Value
	emaSlow := points[0].Value
	var dea float64

	for i, p := range points {
		if i > 0 {
			emaFast = emaStep(m.fastPeriod, emaFast, p.Value)
			emaSlow = emaStep(m.slowPeriod, emaSlow, p.Value)
		}

		dif := emaFast - emaSlow

		if i == 0 {
			dea = dif
		} else {
			dea = emaStep(m.signalPeriod, dea, dif)
		}

		result[i] = models.IndicatorPoint{
			Timestamp: p.Timestamp,
			Value:     p.Value,
			EMA12:     emaFast,
			EMA26:     emaSlow,
			DIF:       dif,
			DEA:       dea,
			MACD:      (dif - dea) * 2,
		}
	}

	return result
}

// emaStep applies one step of the EMA recurrence:
// ema = (price - prev) * (2/(period+1)) + prev.
func emaStep(period int, prev, price float64) float64 {
	return (price-prev)*(2.0/float64(period+1)) + prev
}

// EMASeries calculates a full EMA series over raw values, seeded with the
// first value. Helper for consumers that chart a single EMA.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	result := make([]float64, len(values))
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = emaStep(period, result[i-1], values[i])
	}
	return result
}
