package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

func pricePoints(values ...float64) []models.PricePoint {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	points := make([]models.PricePoint, len(values))
	for i, v := range values {
		points[i] = models.PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Value:     v,
		}
	}
	return points
}

func TestMACDComputeEmpty(t *testing.T) {
	result := NewMACD().Compute(nil)
	if len(result) != 0 {
		t.Fatalf("expected empty result, got %d points", len(result))
	}
}

func TestMACDComputeSinglePoint(t *testing.T) {
	result := NewMACD().Compute(pricePoints(42.5))
	if len(result) != 1 {
		t.Fatalf("expected 1 point, got %d", len(result))
	}
	p := result[0]
	if p.DIF != 0 || p.DEA != 0 || p.MACD != 0 {
		t.Errorf("first point should carry zero DIF/DEA/MACD, got %v/%v/%v", p.DIF, p.DEA, p.MACD)
	}
	if p.EMA12 != 42.5 || p.EMA26 != 42.5 {
		t.Errorf("EMAs should seed with the first price, got %v/%v", p.EMA12, p.EMA26)
	}
}

func TestMACDFlatSeries(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 50.0
	}

	result := NewMACD().Compute(pricePoints(values...))
	if len(result) != 20 {
		t.Fatalf("expected 20 points, got %d", len(result))
	}
	for i, p := range result {
		if p.DIF != 0 || p.DEA != 0 || p.MACD != 0 {
			t.Errorf("point %d: flat series should produce zero DIF/DEA/MACD, got %v/%v/%v", i, p.DIF, p.DEA, p.MACD)
		}
		if p.EMA12 != 50.0 || p.EMA26 != 50.0 {
			t.Errorf("point %d: flat series EMAs should stay at 50, got %v/%v", i, p.EMA12, p.EMA26)
		}
	}
}

func TestMACDRisingSeries(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100.0 + float64(i)
	}

	result := NewMACD().Compute(pricePoints(values...))
	// The fast EMA tracks a rising price more closely than the slow one,
	// so DIF turns positive after the seed point.
	for i := 1; i < len(result); i++ {
		if result[i].DIF <= 0 {
			t.Errorf("point %d: rising series should carry positive DIF, got %v", i, result[i].DIF)
		}
	}
}

func TestMACDRecurrence(t *testing.T) {
	points := pricePoints(10, 11, 12)
	result := NewMACD().Compute(points)

	emaFast := 10.0
	emaSlow := 10.0
	dea := 0.0
	for i := 1; i < len(points); i++ {
		emaFast = (points[i].Value-emaFast)*(2.0/13.0) + emaFast
		emaSlow = (points[i].Value-emaSlow)*(2.0/27.0) + emaSlow
		dif := emaFast - emaSlow
		dea = (dif-dea)*(2.0/10.0) + dea

		if math.Abs(result[i].DIF-dif) > 1e-12 {
			t.Errorf("point %d: DIF = %v, want %v", i, result[i].DIF, dif)
		}
		if math.Abs(result[i].DEA-dea) > 1e-12 {
			t.Errorf("point %d: DEA = %v, want %v", i, result[i].DEA, dea)
		}
	}
}

func TestProperty_MACDSeriesShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	seriesGen := gen.SliceOfN(30, gen.Float64Range(1.0, 5000.0))

	properties.Property("output is parallel to input", prop.ForAll(
		func(values []float64) bool {
			points := pricePoints(values...)
			result := NewMACD().Compute(points)
			if len(result) != len(points) {
				return false
			}
			for i := range result {
				if result[i].Value != points[i].Value || !result[i].Timestamp.Equal(points[i].Timestamp) {
					return false
				}
			}
			return true
		},
		seriesGen,
	))

	properties.Property("first point carries zero DIF and MACD", prop.ForAll(
		func(values []float64) bool {
			result := NewMACD().Compute(pricePoints(values...))
			if len(result) == 0 {
				return true
			}
			return result[0].DIF == 0 && result[0].MACD == 0
		},
		seriesGen,
	))

	properties.Property("EMAs stay within the price range", prop.ForAll(
		func(values []float64) bool {
			result := NewMACD().Compute(pricePoints(values...))
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, v := range values {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			for _, p := range result {
				if p.EMA12 < lo-1e-9 || p.EMA12 > hi+1e-9 || p.EMA26 < lo-1e-9 || p.EMA26 > hi+1e-9 {
					return false
				}
			}
			return true
		},
		seriesGen,
	))

	properties.Property("MACD is twice the DIF/DEA gap", prop.ForAll(
		func(values []float64) bool {
			result := NewMACD().Compute(pricePoints(values...))
			for _, p := range result {
				if math.Abs(p.MACD-(p.DIF-p.DEA)*2) > 1e-9 {
					return false
				}
			}
			return true
		},
		seriesGen,
	))

	properties.TestingRun(t)
}

func TestEMASeries(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   []float64
	}{
		{
			name:   "empty",
			values: nil,
			period: 12,
			want:   nil,
		},
		{
			name:   "seeds with first value",
			values: []float64{5},
			period: 12,
			want:   []float64{5},
		},
		{
			name:   "flat stays flat",
			values: []float64{3, 3, 3},
			period: 9,
			want:   []float64{3, 3, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EMASeries(tt.values, tt.period)
			if len(got) != len(tt.want) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
