package indicator

import (
	"math"

	"github.com/dnldd/dojo/shared"
	"go.uber.org/atomic"
)

// VWAPGenerator represents the Volume Weighted Average Price Indicator.
type VWAPGenerator struct {
	TypicalPriceVolume atomic.Float64
	Volume             atomic.Float64
	Current            atomic.Pointer[Point]
}

// NewVWAPGenerator initializes a VWAP indicator.
func NewVWAPGenerator() *VWAPGenerator {
	return &VWAPGenerator{}
}

// Update cummulatively updates the VWAP indicator with the provided candlestick data.
func (v *VWAPGenerator) Update(candle *shared.Candlestick) Point {
	v.TypicalPriceVolume.Add(candle.TypicalPrice() * float64(candle.Volume))
	v.Volume.Add(float64(candle.Volume))

	vwap := Point{
		Timestamp: candle.Timestamp,
		Value:     v.TypicalPriceVolume.Load() / math.Max(1, v.Volume.Load()),
	}
	v.Current.Store(&vwap)

	return vwap
}

// Value returns the current vwap value, false if no candle has been processed.
func (v *VWAPGenerator) Value() (float64, bool) {
	current := v.Current.Load()
	if current == nil {
		return 0, false
	}

	return current.Value, true
}

// Reset resets the VWAP indicator after a trading session.
func (v *VWAPGenerator) Reset() {
	v.TypicalPriceVolume.Store(0)
	v.Volume.Store(0)
	v.Current.Store(nil)
}
