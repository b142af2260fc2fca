package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
)

const (
	// DefaultSessionLength is the number of one minute candles in a synthetic session.
	DefaultSessionLength = 600

	// wickJitter bounds how far highs and lows stretch past the path price.
	wickJitter = 0.5
	// closeJitter is the peak-to-peak amplitude of the close offset from the open.
	closeJitter = 0.2
	// maxVolume scales a synthetic one minute volume, which is offset by one so it is never zero.
	maxVolume = 100
)

// SyntheticSourceConfig represents the synthetic candle source configuration.
type SyntheticSourceConfig struct {
	// Generator produces the underlying price path.
	Generator *Generator
	// Length is the number of one minute candles to produce.
	Length int
	// Rand drives the candle body, wick and volume jitter. A nil source uses the process-wide
	// generator.
	Rand *rand.Rand
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SyntheticSourceConfig) Validate() error {
	var errs error
	if cfg.Generator == nil {
		errs = errors.Join(errs, fmt.Errorf("generator cannot be nil"))
	}
	if cfg.Length < 1 {
		errs = errors.Join(errs, fmt.Errorf("length must be positive, got %d", cfg.Length))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// SyntheticSource serves generated candle data, the simulated deployment of a candle source.
type SyntheticSource struct {
	cfg    *SyntheticSourceConfig
	randMu sync.Mutex
}

// Ensure the synthetic source implements the CandleSource interface.
var _ shared.CandleSource = (*SyntheticSource)(nil)

// NewSyntheticSource initializes a new synthetic candle source.
func NewSyntheticSource(cfg *SyntheticSourceConfig) (*SyntheticSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating synthetic source config: %w", err)
	}

	return &SyntheticSource{cfg: cfg}, nil
}

// float64 returns the next pseudo-random value in [0, 1).
func (s *SyntheticSource) float64() float64 {
	if s.cfg.Rand == nil {
		return rand.Float64()
	}

	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.cfg.Rand.Float64()
}

// GetAllCandles generates a one minute session for the seed ending at the anchor date and
// aggregates it into every timeframe.
func (s *SyntheticSource) GetAllCandles(ctx context.Context, seed string, anchor time.Time) (shared.AllCandleData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prices := s.cfg.Generator.Generate(seed, s.cfg.Length)
	start := anchor.UnixMilli() - int64(s.cfg.Length)*time.Minute.Milliseconds()

	oneMinute := make([]shared.Candlestick, len(prices))
	for idx, price := range prices {
		open := price
		high := price + s.float64()*wickJitter
		low := price - s.float64()*wickJitter
		closePrice := price + (s.float64()-0.5)*closeJitter

		oneMinute[idx] = shared.Candlestick{
			Timestamp: start + int64(idx)*time.Minute.Milliseconds(),
			Open:      open,
			High:      math.Max(open, math.Max(high, closePrice)),
			Low:       math.Min(open, math.Min(low, closePrice)),
			Close:     closePrice,
			Volume:    uint64(math.Round(s.float64()*maxVolume)) + 1,
		}
	}

	regime, modifier := ParseSeed(seed)
	s.cfg.Logger.Debug().Msgf("generated %d one minute candles (%s:%s) ending %s",
		len(oneMinute), regime.String(), modifier, anchor.UTC().Format(time.RFC3339))

	return AggregateAll(oneMinute), nil
}
