package indicator

import (
	"errors"
	"fmt"

	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
)

// Point represents a timestamped indicator value.
type Point struct {
	// Timestamp is the epoch millisecond open time of the source candle.
	Timestamp int64
	Value     float64
}

// Set represents the indicators derived from one timeframe of candle data.
type Set struct {
	EMA        []Point
	VWAP       []Point
	Levels     *SessionLevels
	Settlement []Settlement
	ADR        []ADRBand
}

// IsEmpty checks whether the set holds no indicator data.
func (s *Set) IsEmpty() bool {
	return s == nil || (len(s.EMA) == 0 && len(s.VWAP) == 0 && s.Levels == nil)
}

// LastVWAP returns the most recent vwap value.
func (s *Set) LastVWAP() (float64, bool) {
	if s == nil || len(s.VWAP) == 0 {
		return 0, false
	}

	return s.VWAP[len(s.VWAP)-1].Value, true
}

// LastEMA returns the most recent ema value.
func (s *Set) LastEMA() (float64, bool) {
	if s == nil || len(s.EMA) == 0 {
		return 0, false
	}

	return s.EMA[len(s.EMA)-1].Value, true
}

// CalculatorConfig represents the indicator calculator configuration.
type CalculatorConfig struct {
	// EMAPeriod is the exponential moving average period.
	EMAPeriod int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *CalculatorConfig) Validate() error {
	var errs error
	if cfg.EMAPeriod < 1 {
		errs = errors.Join(errs, fmt.Errorf("ema period must be positive, got %d", cfg.EMAPeriod))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Calculator derives indicator sets from candle data.
type Calculator struct {
	cfg *CalculatorConfig
}

// NewCalculator initializes a new indicator calculator.
func NewCalculator(cfg *CalculatorConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating calculator config: %w", err)
	}

	return &Calculator{cfg: cfg}, nil
}

// Compute derives a fresh indicator set for the candles of the provided timeframe. An empty set is
// returned when the timeframe has no candles.
func (c *Calculator) Compute(all shared.AllCandleData, timeframe shared.Timeframe) *Set {
	candles := all[timeframe]
	if len(candles) == 0 {
		c.cfg.Logger.Debug().Msgf("no %s candles to compute indicators for", timeframe.String())
		return &Set{}
	}

	levels := Levels(candles)
	return &Set{
		EMA:        EMA(candles, c.cfg.EMAPeriod),
		VWAP:       VWAP(candles),
		Levels:     levels,
		Settlement: []Settlement{levels.Settlement()},
		ADR:        []ADRBand{levels.ADRBand()},
	}
}
