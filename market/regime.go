package market

import (
	"strings"
)

const (
	// defaultSeed is used when no seed is provided.
	defaultSeed = "RANGE:NORMAL"

	// Known regime modifiers.
	modifierDown  = "DOWN"
	modifierTight = "TIGHT"
)

// Regime represents a qualitative market behavior category used to shape generated prices.
type Regime int

const (
	Noise Regime = iota
	Trend
	Range
	News
	VolatilityCrush
)

// String stringifies the provided regime.
func (r Regime) String() string {
	switch r {
	case Noise:
		return "noise"
	case Trend:
		return "trend"
	case Range:
		return "range"
	case News:
		return "news"
	case VolatilityCrush:
		return "volcrush"
	default:
		return "unknown"
	}
}

// ParseSeed splits a "REGIME:MODIFIER" seed into its regime and upper-cased modifier. An empty
// seed resolves to a normal range; unrecognized regimes resolve to noise.
func ParseSeed(seed string) (Regime, string) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		seed = defaultSeed
	}

	name, modifier, _ := strings.Cut(seed, ":")
	modifier = strings.ToUpper(strings.TrimSpace(modifier))

	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TREND":
		return Trend, modifier
	case "RANGE":
		return Range, modifier
	case "NEWS":
		return News, modifier
	case "VOLCRUSH", "VOL_CRUSH", "VOLATILITY-CRUSH", "VOLATILITY_CRUSH":
		return VolatilityCrush, modifier
	default:
		return Noise, modifier
	}
}
