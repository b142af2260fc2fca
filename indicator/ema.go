package indicator

import "github.com/dnldd/dojo/shared"

// DefaultEMAPeriod is the default exponential moving average period.
const DefaultEMAPeriod = 200

// EMA computes the exponential moving average of the candle closes. The average is seeded with the
// first close and smoothed with k = 2/(period+1).
func EMA(candles []shared.Candlestick, period int) []Point {
	if len(candles) == 0 || period < 1 {
		return []Point{}
	}

	k := 2 / float64(period+1)
	points := make([]Point, len(candles))
	prev := candles[0].Close
	for idx := range candles {
		if idx > 0 {
			prev = candles[idx].Close*k + prev*(1-k)
		}

		points[idx] = Point{Timestamp: candles[idx].Timestamp, Value: prev}
	}

	return points
}

// VWAP computes the session-cumulative volume weighted average price for every candle.
func VWAP(candles []shared.Candlestick) []Point {
	gen := NewVWAPGenerator()
	points := make([]Point, len(candles))
	for idx := range candles {
		points[idx] = gen.Update(&candles[idx])
	}

	return points
}
