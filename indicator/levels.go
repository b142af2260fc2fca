package indicator

import (
	"math"

	"github.com/dnldd/dojo/shared"
)

// SessionLevels represents the extremes of a session.
type SessionLevels struct {
	StartTime int64
	EndTime   int64
	High      float64
	Low       float64
	Mid       float64
}

// Settlement represents the settlement value of a session.
type Settlement struct {
	StartTime int64
	EndTime   int64
	Value     float64
}

// ADRBand represents an average daily range band bracketing the session midpoint. The resistance
// half spans [mid, high] and the support half spans [low, mid].
type ADRBand struct {
	StartTime int64
	EndTime   int64
	ResTop    float64
	ResBottom float64
	SupTop    float64
	SupBottom float64
}

// Levels derives the session high, low and midpoint of the provided candles. It returns nil for
// an empty series.
func Levels(candles []shared.Candlestick) *SessionLevels {
	if len(candles) == 0 {
		return nil
	}

	levels := &SessionLevels{
		StartTime: candles[0].Timestamp,
		EndTime:   candles[len(candles)-1].Timestamp,
		High:      math.Inf(-1),
		Low:       math.Inf(1),
	}
	for idx := range candles {
		levels.High = math.Max(levels.High, candles[idx].High)
		levels.Low = math.Min(levels.Low, candles[idx].Low)
	}
	levels.Mid = (levels.High + levels.Low) / 2

	return levels
}

// Settlement returns the settlement of the session, defaulting to its midpoint.
func (l *SessionLevels) Settlement() Settlement {
	return Settlement{StartTime: l.StartTime, EndTime: l.EndTime, Value: l.Mid}
}

// ADRBand returns the range band bounded by the session extremes.
func (l *SessionLevels) ADRBand() ADRBand {
	return ADRBand{
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
		ResTop:    l.High,
		ResBottom: l.Mid,
		SupTop:    l.Mid,
		SupBottom: l.Low,
	}
}
