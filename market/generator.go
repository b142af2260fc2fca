package market

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
)

const (
	// DefaultBasePrice is the first price of every generated path.
	DefaultBasePrice = 100
	// DefaultNoiseFactor is the peak-to-peak amplitude of the per step noise.
	DefaultNoiseFactor = 0.5

	// trendDrift is the constant per step drift of a trending path.
	trendDrift = 0.15
	// rangeAmplitude and tightRangeAmplitude bound the oscillation of a ranging path.
	rangeAmplitude      = 5
	tightRangeAmplitude = 2
	// rangeSpeed is the angular step of the ranging sinusoid in radians.
	rangeSpeed = 0.1
	// newsShock is the magnitude of the discrete news spike.
	newsShock = 10
	// newsQuietScale and newsVolatileScale scale the noise before and after the shock.
	newsQuietScale    = 0.5
	newsVolatileScale = 3
	// volCrushScale is the initial noise multiplier of a volatility crush.
	volCrushScale = 5
)

// GeneratorConfig represents the price path generator configuration.
type GeneratorConfig struct {
	// BasePrice is the first element of every generated path.
	BasePrice float64
	// NoiseFactor is the peak-to-peak amplitude of the unscaled noise term.
	NoiseFactor float64
	// Rand is the pseudo-random source. A nil source uses the process-wide generator so every
	// call yields a fresh sequence.
	Rand *rand.Rand
}

// Validate asserts the config sane inputs.
func (cfg *GeneratorConfig) Validate() error {
	var errs error
	if math.IsNaN(cfg.BasePrice) || math.IsInf(cfg.BasePrice, 0) || cfg.BasePrice <= 0 {
		errs = errors.Join(errs, errors.New("base price must be a positive finite number"))
	}
	if math.IsNaN(cfg.NoiseFactor) || math.IsInf(cfg.NoiseFactor, 0) || cfg.NoiseFactor < 0 {
		errs = errors.Join(errs, errors.New("noise factor must be a non-negative finite number"))
	}

	return errs
}

// Generator produces regime-conditioned synthetic price paths.
type Generator struct {
	cfg    GeneratorConfig
	randMu sync.Mutex
}

// NewGenerator initializes a new price path generator.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Generator{cfg: *cfg}, nil
}

// NewDefaultGenerator initializes a generator with the default base price and noise.
func NewDefaultGenerator() *Generator {
	return &Generator{cfg: GeneratorConfig{BasePrice: DefaultBasePrice, NoiseFactor: DefaultNoiseFactor}}
}

// float64 returns the next pseudo-random value in [0, 1).
func (g *Generator) float64() float64 {
	if g.cfg.Rand == nil {
		return rand.Float64()
	}

	g.randMu.Lock()
	defer g.randMu.Unlock()
	return g.cfg.Rand.Float64()
}

// noise returns a symmetric noise term scaled by the provided multiplier.
func (g *Generator) noise(scale float64) float64 {
	return (g.float64() - 0.5) * g.cfg.NoiseFactor * scale
}

// Generate returns length prices shaped by the regime encoded in the seed. The first price is
// always the base price and every subsequent price is derived from its predecessor. A length
// below one yields an empty path.
func (g *Generator) Generate(seed string, length int) []float64 {
	if length < 1 {
		return []float64{}
	}

	regime, modifier := ParseSeed(seed)

	prices := make([]float64, length)
	prices[0] = g.cfg.BasePrice
	for i := 1; i < length; i++ {
		prices[i] = g.next(regime, modifier, prices[i-1], i, length)
	}

	return prices
}

// next derives the price at index i from the previous price.
func (g *Generator) next(regime Regime, modifier string, prev float64, i int, length int) float64 {
	switch regime {
	case Trend:
		drift := trendDrift
		if modifier == modifierDown {
			drift = -trendDrift
		}
		return prev + drift + g.noise(1)

	case Range:
		amplitude := float64(rangeAmplitude)
		if modifier == modifierTight {
			amplitude = tightRangeAmplitude
		}
		return g.cfg.BasePrice + math.Sin(float64(i)*rangeSpeed)*amplitude + g.noise(1)

	case News:
		event := length / 3
		switch {
		case i == event:
			return prev + newsShock
		case i > event:
			return prev + g.noise(newsVolatileScale)
		default:
			return prev + g.noise(newsQuietScale)
		}

	case VolatilityCrush:
		decay := 1 - float64(i)/float64(length)
		return prev + g.noise(volCrushScale)*decay

	default:
		return prev + g.noise(1)
	}
}
