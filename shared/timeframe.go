package shared

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the format layout for parsing dates.
	DateLayout = "2006-01-02 15:04:05"
	// NewYorkLocation is the location used for anchoring session times.
	NewYorkLocation = "America/New_York"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	OneMinute Timeframe = iota
	FiveMinute
	FifteenMinute
	OneHour
	FourHour
)

// Timeframes is the ordered set of supported timeframes, finest first.
var Timeframes = []Timeframe{OneMinute, FiveMinute, FifteenMinute, OneHour, FourHour}

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case OneHour:
		return "1h"
	case FourHour:
		return "4h"
	default:
		return "unknown"
	}
}

// Multiple returns the number of one minute candles that make up a candle of the timeframe.
func (t Timeframe) Multiple() int {
	switch t {
	case OneMinute:
		return 1
	case FiveMinute:
		return 5
	case FifteenMinute:
		return 15
	case OneHour:
		return 60
	case FourHour:
		return 240
	default:
		return 0
	}
}

// Duration returns the time span covered by a single candle of the timeframe.
func (t Timeframe) Duration() time.Duration {
	return time.Duration(t.Multiple()) * time.Minute
}

// ParseTimeframe parses the provided timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range Timeframes {
		if strings.EqualFold(tf.String(), strings.TrimSpace(s)) {
			return tf, nil
		}
	}

	return 0, fmt.Errorf("unknown timeframe provided: %q", s)
}

// NewYorkTime returns the current time in new york (EST/EDT adjusted automatically).
func NewYorkTime() (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(NewYorkLocation)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("loading new york timezone: %w", err)
	}

	now := time.Now().In(loc)
	return now, loc, nil
}
