package shared

import (
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// Candlestick represents an open/high/low/close/volume summary of a fixed time bucket.
type Candlestick struct {
	// Timestamp is the bucket open time in epoch milliseconds.
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    uint64
}

// Date returns the candlestick's open time.
func (c *Candlestick) Date() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Valid checks the candlestick satisfies low <= min(open,close) <= max(open,close) <= high
// with finite prices.
func (c *Candlestick) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return c.Low <= math.Min(c.Open, c.Close) && math.Max(c.Open, c.Close) <= c.High
}

// TypicalPrice returns the (high + low + close) / 3 average of the candlestick.
func (c *Candlestick) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// AllCandleData maps every timeframe to its chronologically ordered candlesticks, all derived
// from the same one minute sequence.
type AllCandleData map[Timeframe][]Candlestick

// NewAllCandleData initializes candle data with an empty series for every timeframe.
func NewAllCandleData() AllCandleData {
	all := make(AllCandleData, len(Timeframes))
	for _, tf := range Timeframes {
		all[tf] = []Candlestick{}
	}

	return all
}

// Len returns the number of candles for the provided timeframe.
func (a AllCandleData) Len(timeframe Timeframe) int {
	return len(a[timeframe])
}

// ParseCandlesticks parses candlesticks from the provided json data. Entries are expected to carry
// either an epoch millisecond "timestamp" or a "date" in DateLayout, interpreted in the provided
// location.
func ParseCandlesticks(data []gjson.Result, loc *time.Location) ([]Candlestick, error) {
	if loc == nil {
		loc = time.UTC
	}

	candles := make([]Candlestick, 0, len(data))
	for idx := range data {
		var candle Candlestick

		candle.Open = data[idx].Get("open").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Close = data[idx].Get("close").Float()
		candle.Volume = data[idx].Get("volume").Uint()

		switch ts := data[idx].Get("timestamp"); {
		case ts.Exists():
			candle.Timestamp = ts.Int()
		default:
			dt, err := time.ParseInLocation(DateLayout, data[idx].Get("date").String(), loc)
			if err != nil {
				return nil, fmt.Errorf("parsing candlestick date: %w", err)
			}
			candle.Timestamp = dt.UnixMilli()
		}

		if !candle.Valid() {
			return nil, fmt.Errorf("candlestick at index %d violates price bounds: o=%f h=%f l=%f c=%f",
				idx, candle.Open, candle.High, candle.Low, candle.Close)
		}

		candles = append(candles, candle)
	}

	return candles, nil
}
