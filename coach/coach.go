package coach

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/dojo/indicator"
	"github.com/dnldd/dojo/position"
	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
)

const (
	// DefaultCooldown is the minimum time between two tips.
	DefaultCooldown = time.Second * 15

	// LongBelowVWAP is the rule hit for holding a long below vwap.
	LongBelowVWAP = "long_below_vwap"
	// ShortAboveVWAP is the rule hit for holding a short above vwap.
	ShortAboveVWAP = "short_above_vwap"

	longBelowVWAPTip  = "You're long below VWAP. Be cautious, the short-term trend may be against you."
	shortAboveVWAPTip = "You're short above VWAP. Ensure this aligns with your strategy."
)

// State represents the market and position state advice is derived from.
type State struct {
	Price float64
	// Position is the open position, nil when flat.
	Position   *position.Position
	Indicators *indicator.Set
}

// Advice represents the outcome of an evaluation. Empty fields mean nothing to report.
type Advice struct {
	Tip     string
	RuleHit string
}

// IsEmpty checks whether the advice carries nothing.
func (a Advice) IsEmpty() bool {
	return a.Tip == "" && a.RuleHit == ""
}

// EvaluatorConfig represents the coaching evaluator configuration.
type EvaluatorConfig struct {
	// Cooldown is the minimum time between two tips.
	Cooldown time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *EvaluatorConfig) Validate() error {
	var errs error
	if cfg.Cooldown < 0 {
		errs = errors.Join(errs, fmt.Errorf("cooldown cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Evaluator compares the player's position against vwap and advises when it is on the wrong
// side, at most once per cooldown.
type Evaluator struct {
	cfg     *EvaluatorConfig
	lastTip time.Time
	mtx     sync.Mutex
}

// NewEvaluator initializes a new coaching evaluator.
func NewEvaluator(cfg *EvaluatorConfig) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating evaluator config: %w", err)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Evaluator{cfg: cfg}, nil
}

// Evaluate returns advice for the provided state.
func (e *Evaluator) Evaluate(state State) Advice {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	now := e.cfg.Now()
	if !e.lastTip.IsZero() && now.Sub(e.lastTip) < e.cfg.Cooldown {
		return Advice{}
	}

	if state.Position == nil {
		return Advice{}
	}

	vwap, ok := state.Indicators.LastVWAP()
	if !ok || vwap == 0 {
		return Advice{}
	}

	var advice Advice
	switch {
	case state.Position.Direction == shared.Long && state.Price < vwap:
		advice = Advice{Tip: longBelowVWAPTip, RuleHit: LongBelowVWAP}
	case state.Position.Direction == shared.Short && state.Price > vwap:
		advice = Advice{Tip: shortAboveVWAPTip, RuleHit: ShortAboveVWAP}
	default:
		return Advice{}
	}

	e.lastTip = now
	e.cfg.Logger.Debug().Msgf("%s: price %.2f, vwap %.2f", advice.RuleHit, state.Price, vwap)

	return advice
}

// Reset clears the cooldown.
func (e *Evaluator) Reset() {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.lastTip = time.Time{}
}
