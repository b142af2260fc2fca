package market

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HistoricSourceConfig represents the historic candle source configuration.
type HistoricSourceConfig struct {
	// FilePath is the filepath to the historic market data.
	FilePath string
	// Location is used to interpret candle dates that carry no zone. Defaults to new york.
	Location *time.Location
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *HistoricSourceConfig) Validate() error {
	var errs error
	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("historic data filepath cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// HistoricSource serves recorded one minute market data aggregated into every timeframe.
type HistoricSource struct {
	cfg     *HistoricSourceConfig
	market  string
	candles []shared.Candlestick
}

// Ensure the historic source implements the CandleSource interface.
var _ shared.CandleSource = (*HistoricSource)(nil)

// loadHistoricData loads the historic data from the provided file path.
func loadHistoricData(filepath string) (*gjson.Result, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %w", filepath, err)
	}

	if !gjson.ValidBytes(readb) {
		return nil, fmt.Errorf("historic data at '%s' is not valid json", filepath)
	}

	b := gjson.ParseBytes(readb)
	return &b, nil
}

// NewHistoricSource initializes a new historic candle source.
func NewHistoricSource(cfg *HistoricSourceConfig) (*HistoricSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating historic source config: %w", err)
	}

	if cfg.Location == nil {
		loc, err := time.LoadLocation(shared.NewYorkLocation)
		if err != nil {
			return nil, fmt.Errorf("loading new york location: %w", err)
		}
		cfg.Location = loc
	}

	b, err := loadHistoricData(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	candles, err := shared.ParseCandlesticks(b.Get(shared.OneMinute.String()).Array(), cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("parsing candlesticks: %w", err)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("no one minute candles found in '%s'", cfg.FilePath)
	}

	for idx := 1; idx < len(candles); idx++ {
		if candles[idx].Timestamp <= candles[idx-1].Timestamp {
			return nil, fmt.Errorf("historic candles are not in chronological order at index %d", idx)
		}
	}

	return &HistoricSource{
		cfg:     cfg,
		market:  b.Get("market").String(),
		candles: candles,
	}, nil
}

// Market returns the market the historic data was recorded for.
func (h *HistoricSource) Market() string {
	return h.market
}

// GetAllCandles returns the recorded candles at or before the anchor date aggregated into every
// timeframe. A zero anchor returns the full recording.
func (h *HistoricSource) GetAllCandles(ctx context.Context, symbol string, anchor time.Time) (shared.AllCandleData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if h.market != "" && symbol != "" && symbol != h.market {
		h.cfg.Logger.Warn().Msgf("requested %s candles from %s historic data", symbol, h.market)
	}

	end := len(h.candles)
	if !anchor.IsZero() {
		cutoff := anchor.UnixMilli()
		for end > 0 && h.candles[end-1].Timestamp > cutoff {
			end--
		}
	}

	if end == 0 {
		return nil, fmt.Errorf("no historic candles at or before %s", anchor.Format(time.RFC1123))
	}

	first := h.candles[0].Date()
	last := h.candles[end-1].Date()
	h.cfg.Logger.Info().Msgf("serving historic data covering %.2f hours, from %s, to %s",
		last.Sub(first).Hours(), first.In(h.cfg.Location).Format(time.RFC1123),
		last.In(h.cfg.Location).Format(time.RFC1123))

	return AggregateAll(h.candles[:end]), nil
}
