package market

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()

	gen, err := NewGenerator(&GeneratorConfig{
		BasePrice:   DefaultBasePrice,
		NoiseFactor: DefaultNoiseFactor,
		Rand:        rand.New(rand.NewPCG(7, 11)),
	})
	assert.NoError(t, err)

	return gen
}

func TestGeneratorConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GeneratorConfig
		wantErr bool
	}{
		{"valid config", GeneratorConfig{BasePrice: 100, NoiseFactor: 0.5}, false},
		{"zero noise", GeneratorConfig{BasePrice: 100, NoiseFactor: 0}, false},
		{"zero base price", GeneratorConfig{BasePrice: 0, NoiseFactor: 0.5}, true},
		{"negative noise", GeneratorConfig{BasePrice: 100, NoiseFactor: -1}, true},
		{"infinite base price", GeneratorConfig{BasePrice: math.Inf(1), NoiseFactor: 0.5}, true},
	}

	for _, test := range tests {
		err := test.cfg.Validate()
		if (err != nil) != test.wantErr {
			t.Errorf("%s: expected error %v, got %v", test.name, test.wantErr, err)
		}
	}
}

func TestParseSeed(t *testing.T) {
	tests := []struct {
		seed     string
		regime   Regime
		modifier string
	}{
		{"TREND:UP_STRONG", Trend, "UP_STRONG"},
		{"trend:down", Trend, "DOWN"},
		{"RANGE:TIGHT", Range, "TIGHT"},
		{"NEWS:CPI_SPIKE", News, "CPI_SPIKE"},
		{"VOLCRUSH", VolatilityCrush, ""},
		{"", Range, "NORMAL"},
		{"MES", Noise, ""},
		{"::garbled::", Noise, ":GARBLED::"},
	}

	for _, test := range tests {
		regime, modifier := ParseSeed(test.seed)
		if regime != test.regime || modifier != test.modifier {
			t.Errorf("%q: expected %s/%s, got %s/%s", test.seed, test.regime.String(),
				test.modifier, regime.String(), modifier)
		}
	}
}

func TestGenerateLengthAndFiniteness(t *testing.T) {
	gen := newTestGenerator(t)
	seeds := []string{"TREND:UP", "TREND:DOWN", "RANGE:NORMAL", "RANGE:TIGHT", "NEWS:CPI",
		"VOLCRUSH:FAST", "", "garbage"}

	for _, seed := range seeds {
		for _, length := range []int{2, 3, 10, 600} {
			prices := gen.Generate(seed, length)
			assert.Equal(t, len(prices), length)
			assert.Equal(t, prices[0], float64(DefaultBasePrice))
			for idx := range prices {
				if math.IsNaN(prices[idx]) || math.IsInf(prices[idx], 0) {
					t.Fatalf("%q: non-finite price at index %d", seed, idx)
				}
			}
		}
	}

	// Ensure degenerate lengths never fail.
	assert.Equal(t, len(gen.Generate("TREND:UP", 0)), 0)
	assert.Equal(t, len(gen.Generate("TREND:UP", -5)), 0)
	assert.Equal(t, gen.Generate("TREND:UP", 1), []float64{DefaultBasePrice})
}

func TestGenerateTrend(t *testing.T) {
	gen := newTestGenerator(t)

	meanDiff := func(prices []float64) float64 {
		var sum float64
		for idx := 1; idx < len(prices); idx++ {
			sum += prices[idx] - prices[idx-1]
		}
		return sum / float64(len(prices)-1)
	}

	// Ensure trends drift in the configured direction.
	assert.GreaterThan(t, meanDiff(gen.Generate("TREND:UP", 1000)), 0)
	assert.LessThan(t, meanDiff(gen.Generate("TREND:DOWN", 1000)), 0)
}

func TestGenerateRange(t *testing.T) {
	gen := newTestGenerator(t)

	tests := []struct {
		seed     string
		envelope float64
	}{
		{"RANGE:NORMAL", rangeAmplitude + DefaultNoiseFactor/2},
		{"RANGE:TIGHT", tightRangeAmplitude + DefaultNoiseFactor/2},
	}

	// Ensure ranging paths stay within a bounded envelope around the base price.
	for _, test := range tests {
		prices := gen.Generate(test.seed, 5000)
		for idx := range prices {
			if math.Abs(prices[idx]-DefaultBasePrice) > test.envelope {
				t.Fatalf("%s: price %f at index %d escaped the envelope", test.seed,
					prices[idx], idx)
			}
		}
	}
}

func TestGenerateNews(t *testing.T) {
	gen := newTestGenerator(t)
	length := 300
	event := length / 3
	prices := gen.Generate("NEWS:CPI", length)

	// Ensure the shock lands at a third of the path.
	assert.Equal(t, prices[event]-prices[event-1], float64(newsShock))

	// Ensure the path is quiet before the shock and volatile after it.
	quiet := DefaultNoiseFactor * newsQuietScale / 2
	volatile := DefaultNoiseFactor * newsVolatileScale / 2
	for idx := 1; idx < length; idx++ {
		diff := math.Abs(prices[idx] - prices[idx-1])
		switch {
		case idx < event:
			assert.LessThanOrEqual(t, diff, quiet)
		case idx > event:
			assert.LessThanOrEqual(t, diff, volatile)
		}
	}
}

func TestGenerateVolatilityCrush(t *testing.T) {
	gen := newTestGenerator(t)
	length := 400
	prices := gen.Generate("VOLCRUSH", length)

	// Ensure the step size decays linearly towards zero.
	for idx := 1; idx < length; idx++ {
		bound := DefaultNoiseFactor * volCrushScale / 2 * (1 - float64(idx)/float64(length))
		assert.LessThanOrEqual(t, math.Abs(prices[idx]-prices[idx-1]), bound+1e-12)
	}
}

func TestGenerateFreshSequences(t *testing.T) {
	// Ensure a generator without an injected source yields fresh sequences per call.
	gen := NewDefaultGenerator()
	first := gen.Generate("RANGE:NORMAL", 50)
	second := gen.Generate("RANGE:NORMAL", 50)

	var differs bool
	for idx := range first {
		if first[idx] != second[idx] {
			differs = true
			break
		}
	}

	assert.True(t, differs)
}
