package market

import (
	"math"

	"github.com/dnldd/dojo/shared"
)

// Aggregate groups consecutive chunks of multiple base candles into coarser candles. The last
// chunk may be shorter when the input length is not a multiple. A multiple of one or less returns
// a copy of the input.
func Aggregate(candles []shared.Candlestick, multiple int) []shared.Candlestick {
	if multiple <= 1 {
		out := make([]shared.Candlestick, len(candles))
		copy(out, candles)
		return out
	}

	out := make([]shared.Candlestick, 0, (len(candles)+multiple-1)/multiple)
	for start := 0; start < len(candles); start += multiple {
		end := min(start+multiple, len(candles))
		chunk := candles[start:end]

		candle := shared.Candlestick{
			Timestamp: chunk[0].Timestamp,
			Open:      chunk[0].Open,
			High:      math.Inf(-1),
			Low:       math.Inf(1),
			Close:     chunk[len(chunk)-1].Close,
		}

		for idx := range chunk {
			candle.High = math.Max(candle.High, chunk[idx].High)
			candle.Low = math.Min(candle.Low, chunk[idx].Low)
			candle.Volume += chunk[idx].Volume
		}

		out = append(out, candle)
	}

	return out
}

// AggregateAll derives candle data for every supported timeframe from one minute candles.
func AggregateAll(oneMinute []shared.Candlestick) shared.AllCandleData {
	all := shared.NewAllCandleData()
	for _, tf := range shared.Timeframes {
		all[tf] = Aggregate(oneMinute, tf.Multiple())
	}

	return all
}
