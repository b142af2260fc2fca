package director

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dnldd/dojo/shared"
	"github.com/tidwall/gjson"
)

// RubricInput represents the session outcome a rubric scores.
type RubricInput struct {
	PNL      float64
	RuleHits map[string]uint32
}

// Rubric converts a session outcome into a final score.
type Rubric func(input RubricInput) int

// Rule represents a named, weighted scoring rule.
type Rule struct {
	ID     string
	Weight float64
	Desc   string
}

// Scoring represents the scoring definition of a drill.
type Scoring struct {
	Rules  []Rule
	Rubric Rubric
}

// Drill represents the configuration of a playable session.
type Drill struct {
	ID     string
	Symbol string
	// Seed is the optional price regime seed of synthetic sessions, "REGIME:MODIFIER".
	Seed       string
	Timeframe  shared.Timeframe
	AnchorDate time.Time
	// Reward is the amount of in-game currency credited on completion.
	Reward  int64
	Phases  []Phase
	Scoring Scoring
}

// MarketKey returns the key candle data is requested with, the seed when set and the symbol
// otherwise.
func (d *Drill) MarketKey() string {
	if d.Seed != "" {
		return d.Seed
	}

	return d.Symbol
}

// Phase returns the first phase of the drill with the provided identifier.
func (d *Drill) Phase(id PhaseID) (Phase, bool) {
	for idx := range d.Phases {
		if d.Phases[idx].ID == id {
			return d.Phases[idx], true
		}
	}

	return Phase{}, false
}

// Validate asserts the drill is playable.
func (d *Drill) Validate() error {
	var errs error
	if d.ID == "" {
		errs = errors.Join(errs, fmt.Errorf("drill id cannot be an empty string"))
	}
	if d.Symbol == "" {
		errs = errors.Join(errs, fmt.Errorf("drill symbol cannot be an empty string"))
	}
	if d.Timeframe.Multiple() == 0 {
		errs = errors.Join(errs, fmt.Errorf("drill timeframe %d is not supported", d.Timeframe))
	}
	if d.Reward < 0 {
		errs = errors.Join(errs, fmt.Errorf("drill reward cannot be negative"))
	}
	if len(d.Phases) == 0 {
		errs = errors.Join(errs, fmt.Errorf("drill phases cannot be empty"))
	}
	for idx := range d.Phases {
		if d.Phases[idx].DurationSec < 0 {
			errs = errors.Join(errs, fmt.Errorf("phase %s duration cannot be negative",
				d.Phases[idx].ID.String()))
		}
		if idx > 0 && d.Phases[idx].ID <= d.Phases[idx-1].ID {
			errs = errors.Join(errs, fmt.Errorf("phase %s cannot follow phase %s",
				d.Phases[idx].ID.String(), d.Phases[idx-1].ID.String()))
		}
	}
	if d.Scoring.Rubric == nil {
		errs = errors.Join(errs, fmt.Errorf("drill rubric cannot be nil"))
	}

	return errs
}

// RubricConfig represents the coefficients of a weighted rubric.
type RubricConfig struct {
	// Base is the score of a flat session without rule hits.
	Base float64
	// PNLScale is the pnl at which the tanh term reaches ~76% of its weight.
	PNLScale float64
	// PNLWeight bounds the pnl contribution to ±PNLWeight.
	PNLWeight float64
	// Bonuses maps rule ids to the score added per hit.
	Bonuses map[string]float64
}

// WeightedRubric returns a rubric that biases the base score by a saturating function of pnl and
// adds a bonus per rule hit: round(base + tanh(pnl/scale)*weight + Σ hits[rule]*bonus[rule]).
func WeightedRubric(cfg RubricConfig) Rubric {
	bonuses := make(map[string]float64, len(cfg.Bonuses))
	for rule, bonus := range cfg.Bonuses {
		bonuses[rule] = bonus
	}

	return func(input RubricInput) int {
		score := cfg.Base
		if cfg.PNLScale != 0 {
			score += math.Tanh(input.PNL/cfg.PNLScale) * cfg.PNLWeight
		}
		for rule, bonus := range bonuses {
			score += float64(input.RuleHits[rule]) * bonus
		}

		// Halves round up, towards positive infinity.
		return int(math.Floor(score + 0.5))
	}
}

// ReplayDrill returns the reference replay drill: a vwap pullback session on MES.
func ReplayDrill() *Drill {
	return &Drill{
		ID:         "replay-drill-01",
		Symbol:     "MES",
		Timeframe:  shared.FiveMinute,
		AnchorDate: time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC),
		Reward:     100,
		Phases: []Phase{
			{
				ID:      Brief,
				Title:   "Briefing",
				OnEnter: []Event{ShowTip{Text: "Scope: trade only pullbacks to VWAP.", When: OnEnterTrigger}},
			},
			{
				ID:          Play,
				Title:       "Trade Window",
				DurationSec: 180,
				OnEnter: []Event{
					SpawnCheckpoint{Rule: "no_chase: entry within 2 candles of signal"},
					SpawnCheckpoint{Rule: "rr_min: risk:reward ≥ 1:1.5"},
					ShowTip{Text: "Drag SL/TP handles to manage risk.", When: OnEnterTrigger},
				},
			},
			{
				ID:      Review,
				Title:   "Replay Review",
				OnEnter: []Event{ShowTip{Text: "Journal your trade; note emotion + rule hits.", When: OnEnterTrigger}},
			},
			{ID: Score, Title: "Scoring"},
		},
		Scoring: Scoring{
			Rules: []Rule{
				{ID: "no_chase", Weight: 0.3, Desc: "Did not chase entries"},
				{ID: "rr_min", Weight: 0.4, Desc: "Maintained R:R ≥ 1:1.5"},
				{ID: "stop_respect", Weight: 0.3, Desc: "Never widened stop"},
			},
			Rubric: WeightedRubric(RubricConfig{
				Base:      50,
				PNLScale:  5,
				PNLWeight: 25,
				Bonuses:   map[string]float64{"no_chase": 10, "rr_min": 10, "stop_respect": 5},
			}),
		},
	}
}

// parseEvents parses phase events from the provided json data.
func parseEvents(data []gjson.Result) ([]Event, error) {
	events := make([]Event, 0, len(data))
	for idx := range data {
		id := data[idx].Get("id").String()
		switch id {
		case ShowTipEvent.String():
			tip := ShowTip{Text: data[idx].Get("text").String()}
			switch data[idx].Get("when").String() {
			case "", OnEnterTrigger.String():
				tip.When = OnEnterTrigger
			case RuleBreakTrigger.String():
				tip.When = RuleBreakTrigger
			case MilestoneTrigger.String():
				tip.When = MilestoneTrigger
			default:
				return nil, fmt.Errorf("unknown tip trigger '%s'", data[idx].Get("when").String())
			}
			events = append(events, tip)

		case SpawnCheckpointEvent.String():
			checkpoint := SpawnCheckpoint{Rule: data[idx].Get("rule").String()}
			payload := data[idx].Get("payload")
			if payload.IsObject() {
				checkpoint.Payload = make(map[string]string)
				payload.ForEach(func(key, value gjson.Result) bool {
					checkpoint.Payload[key.String()] = value.String()
					return true
				})
			}
			events = append(events, checkpoint)

		case EndPlayEvent.String():
			end := EndPlay{}
			switch data[idx].Get("reason").String() {
			case "", Timeout.String():
				end.Reason = Timeout
			case TargetsMet.String():
				end.Reason = TargetsMet
			case StoppedOut.String():
				end.Reason = StoppedOut
			default:
				return nil, fmt.Errorf("unknown end reason '%s'", data[idx].Get("reason").String())
			}
			events = append(events, end)

		default:
			return nil, fmt.Errorf("unknown event '%s'", id)
		}
	}

	return events, nil
}

// ParseDrill parses a drill from json. The rubric is a weighted rubric built from the "scoring"
// coefficients, each rule contributing its "bonus" per hit (its weight when no bonus is set).
func ParseDrill(data []byte) (*Drill, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("drill data is not valid json")
	}

	b := gjson.ParseBytes(data)

	timeframe, err := shared.ParseTimeframe(b.Get("timeframe").String())
	if err != nil {
		return nil, fmt.Errorf("parsing drill timeframe: %w", err)
	}

	var anchor time.Time
	if raw := b.Get("anchorDate").String(); raw != "" {
		anchor, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing drill anchor date: %w", err)
		}
	}

	drill := &Drill{
		ID:         b.Get("id").String(),
		Symbol:     b.Get("symbol").String(),
		Seed:       strings.TrimSpace(b.Get("seed").String()),
		Timeframe:  timeframe,
		AnchorDate: anchor,
		Reward:     b.Get("reward").Int(),
	}

	for _, p := range b.Get("phases").Array() {
		id, err := ParsePhaseID(p.Get("id").String())
		if err != nil {
			return nil, fmt.Errorf("parsing phase id: %w", err)
		}

		phase := Phase{
			ID:          id,
			Title:       p.Get("title").String(),
			DurationSec: int(p.Get("durationSec").Int()),
		}

		phase.OnEnter, err = parseEvents(p.Get("onEnter").Array())
		if err != nil {
			return nil, fmt.Errorf("parsing %s enter events: %w", id.String(), err)
		}
		phase.OnTick, err = parseEvents(p.Get("onTick").Array())
		if err != nil {
			return nil, fmt.Errorf("parsing %s tick events: %w", id.String(), err)
		}
		phase.OnExit, err = parseEvents(p.Get("onExit").Array())
		if err != nil {
			return nil, fmt.Errorf("parsing %s exit events: %w", id.String(), err)
		}

		drill.Phases = append(drill.Phases, phase)
	}

	scoring := b.Get("scoring")
	rubric := RubricConfig{
		Base:      scoring.Get("base").Float(),
		PNLScale:  scoring.Get("pnlScale").Float(),
		PNLWeight: scoring.Get("pnlWeight").Float(),
		Bonuses:   make(map[string]float64),
	}
	for _, r := range scoring.Get("rules").Array() {
		rule := Rule{
			ID:     r.Get("id").String(),
			Weight: r.Get("weight").Float(),
			Desc:   r.Get("desc").String(),
		}
		drill.Scoring.Rules = append(drill.Scoring.Rules, rule)

		bonus := rule.Weight
		if r.Get("bonus").Exists() {
			bonus = r.Get("bonus").Float()
		}
		rubric.Bonuses[rule.ID] = bonus
	}
	drill.Scoring.Rubric = WeightedRubric(rubric)

	if err := drill.Validate(); err != nil {
		return nil, fmt.Errorf("validating drill: %w", err)
	}

	return drill, nil
}
