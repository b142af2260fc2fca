package director

import (
	"testing"
	"time"

	"github.com/dnldd/dojo/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
)

func TestWeightedRubric(t *testing.T) {
	rubric := WeightedRubric(RubricConfig{
		Base:      50,
		PNLScale:  5,
		PNLWeight: 25,
		Bonuses:   map[string]float64{"no_chase": 10, "rr_min": 10, "stop_respect": 5},
	})

	tests := []struct {
		name  string
		input RubricInput
		want  int
	}{
		{name: "flat session", input: RubricInput{}, want: 50},
		{name: "winning session", input: RubricInput{PNL: 5}, want: 69},
		{name: "losing session", input: RubricInput{PNL: -5}, want: 31},
		{
			name:  "winning session with a rule hit",
			input: RubricInput{PNL: 5, RuleHits: map[string]uint32{"no_chase": 1}},
			want:  79,
		},
		{
			name:  "unknown rule hits are ignored",
			input: RubricInput{RuleHits: map[string]uint32{"unknown": 4, "stop_respect": 2}},
			want:  60,
		},
		{name: "large pnl saturates", input: RubricInput{PNL: 10000}, want: 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, rubric(tt.input), tt.want)
		})
	}

	// Ensure a zero pnl scale drops the pnl term.
	flat := WeightedRubric(RubricConfig{Base: 40, PNLWeight: 25})
	assert.Equal(t, flat(RubricInput{PNL: 100}), 40)

	// Ensure halves round towards positive infinity.
	assert.Equal(t, WeightedRubric(RubricConfig{Base: 10.5})(RubricInput{}), 11)
	assert.Equal(t, WeightedRubric(RubricConfig{Base: -0.5})(RubricInput{}), 0)

	// Ensure the rubric does not alias the provided bonuses.
	bonuses := map[string]float64{"no_chase": 10}
	aliased := WeightedRubric(RubricConfig{Base: 50, Bonuses: bonuses})
	bonuses["no_chase"] = 100
	assert.Equal(t, aliased(RubricInput{RuleHits: map[string]uint32{"no_chase": 1}}), 60)
}

func TestDrillValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Drill)
		wantErr bool
	}{
		{name: "valid drill", mutate: func(d *Drill) {}, wantErr: false},
		{name: "empty id", mutate: func(d *Drill) { d.ID = "" }, wantErr: true},
		{name: "empty symbol", mutate: func(d *Drill) { d.Symbol = "" }, wantErr: true},
		{name: "unsupported timeframe", mutate: func(d *Drill) { d.Timeframe = shared.Timeframe(42) }, wantErr: true},
		{name: "negative reward", mutate: func(d *Drill) { d.Reward = -1 }, wantErr: true},
		{name: "no phases", mutate: func(d *Drill) { d.Phases = nil }, wantErr: true},
		{name: "negative duration", mutate: func(d *Drill) { d.Phases[1].DurationSec = -1 }, wantErr: true},
		{
			name:    "unordered phases",
			mutate:  func(d *Drill) { d.Phases[0], d.Phases[1] = d.Phases[1], d.Phases[0] },
			wantErr: true,
		},
		{
			name:    "repeated phase",
			mutate:  func(d *Drill) { d.Phases[2].ID = Play },
			wantErr: true,
		},
		{name: "nil rubric", mutate: func(d *Drill) { d.Scoring.Rubric = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drill := ReplayDrill()
			tt.mutate(drill)
			err := drill.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDrillLookups(t *testing.T) {
	drill := ReplayDrill()

	// Ensure the market key falls back to the symbol without a seed.
	assert.Equal(t, drill.MarketKey(), "MES")
	drill.Seed = "TREND:UP"
	assert.Equal(t, drill.MarketKey(), "TREND:UP")

	// Ensure phases can be looked up by identifier.
	play, ok := drill.Phase(Play)
	assert.True(t, ok)
	assert.Equal(t, play.DurationSec, 180)
	assert.True(t, play.Timed())

	review, ok := drill.Phase(Review)
	assert.True(t, ok)
	assert.False(t, review.Timed())

	drill.Phases = drill.Phases[:2]
	_, ok = drill.Phase(Score)
	assert.False(t, ok)
}

func TestParsePhaseID(t *testing.T) {
	tests := []struct {
		input   string
		want    PhaseID
		wantErr bool
	}{
		{input: "brief", want: Brief},
		{input: " PLAY ", want: Play},
		{input: "Review", want: Review},
		{input: "score", want: Score},
		{input: "warmup", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePhaseID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

const drillJSON = `{
	"id": "vwap-fade",
	"symbol": "ES",
	"seed": " RANGE:TIGHT ",
	"timeframe": "15m",
	"anchorDate": "2025-04-01T12:00:00Z",
	"reward": 30,
	"phases": [
		{"id": "brief", "title": "Brief", "onEnter": [{"id": "showTip", "text": "fade the extremes"}]},
		{
			"id": "play",
			"title": "Play",
			"durationSec": 60,
			"onEnter": [{"id": "spawnCheckpoint", "rule": "no_chase", "payload": {"candles": "2"}}],
			"onTick": [{"id": "showTip", "text": "watch vwap", "when": "milestone"}],
			"onExit": [{"id": "endPlay", "reason": "targetsMet"}]
		},
		{"id": "review", "title": "Review"},
		{"id": "score", "title": "Score"}
	],
	"scoring": {
		"base": 50,
		"pnlScale": 5,
		"pnlWeight": 25,
		"rules": [
			{"id": "no_chase", "weight": 0.3, "desc": "Did not chase entries", "bonus": 10},
			{"id": "rr_min", "weight": 0.4, "desc": "Maintained R:R"}
		]
	}
}`

func TestParseDrill(t *testing.T) {
	drill, err := ParseDrill([]byte(drillJSON))
	assert.NoError(t, err)

	assert.Equal(t, drill.ID, "vwap-fade")
	assert.Equal(t, drill.Symbol, "ES")
	assert.Equal(t, drill.Seed, "RANGE:TIGHT")
	assert.Equal(t, drill.Timeframe, shared.FifteenMinute)
	assert.True(t, drill.AnchorDate.Equal(time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, drill.Reward, int64(30))
	assert.Equal(t, len(drill.Phases), 4)

	// Ensure phase events are parsed into their concrete variants.
	wantPhases := []Phase{
		{
			ID:      Brief,
			Title:   "Brief",
			OnEnter: []Event{ShowTip{Text: "fade the extremes", When: OnEnterTrigger}},
		},
		{
			ID:          Play,
			Title:       "Play",
			DurationSec: 60,
			OnEnter:     []Event{SpawnCheckpoint{Rule: "no_chase", Payload: map[string]string{"candles": "2"}}},
			OnTick:      []Event{ShowTip{Text: "watch vwap", When: MilestoneTrigger}},
			OnExit:      []Event{EndPlay{Reason: TargetsMet}},
		},
		{ID: Review, Title: "Review"},
		{ID: Score, Title: "Score"},
	}
	if diff := cmp.Diff(wantPhases, drill.Phases, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}

	// Ensure rules are kept and the rubric falls back to rule weights without a bonus.
	assert.Equal(t, len(drill.Scoring.Rules), 2)
	assert.Equal(t, drill.Scoring.Rules[0].Desc, "Did not chase entries")
	score := drill.Scoring.Rubric(RubricInput{RuleHits: map[string]uint32{"no_chase": 1, "rr_min": 5}})
	assert.Equal(t, score, 62)

	// Ensure a drill without an anchor date keeps the zero time.
	noAnchor, err := ParseDrill([]byte(`{"id": "a", "symbol": "MES", "timeframe": "1m",
		"phases": [{"id": "play", "durationSec": 3}]}`))
	assert.NoError(t, err)
	assert.True(t, noAnchor.AnchorDate.IsZero())
	assert.Equal(t, noAnchor.Scoring.Rubric(RubricInput{PNL: 5}), 0)
}

func TestParseDrillErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"id": `},
		{name: "unknown timeframe", data: `{"id": "a", "symbol": "MES", "timeframe": "2m",
			"phases": [{"id": "play"}]}`},
		{name: "invalid anchor date", data: `{"id": "a", "symbol": "MES", "timeframe": "1m",
			"anchorDate": "yesterday", "phases": [{"id": "play"}]}`},
		{name: "unknown phase", data: `{"id": "a", "symbol": "MES", "timeframe": "1m",
			"phases": [{"id": "warmup"}]}`},
		{name: "unknown event", data: `{"id": "a", "symbol": "MES", "timeframe": "1m",
			"phases": [{"id": "play", "onEnter": [{"id": "confetti"}]}]}`},
		{name: "unknown tip trigger", data: `{"id": "a", "symbol": "MES", "timeframe": "1m",
			"phases": [{"id": "play", "onTick": [{"id": "showTip", "when": "never"}]}]}`},
		{name: "unknown end reason", data: `{"id": "a", "symbol": "MES", "timeframe": "1m",
			"phases": [{"id": "play", "onExit": [{"id": "endPlay", "reason": "bored"}]}]}`},
		{name: "no phases", data: `{"id": "a", "symbol": "MES", "timeframe": "1m"}`},
		{name: "unordered phases", data: `{"id": "a", "symbol": "MES", "timeframe": "1m",
			"phases": [{"id": "review"}, {"id": "play"}]}`},
		{name: "missing id", data: `{"symbol": "MES", "timeframe": "1m", "phases": [{"id": "play"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drill, err := ParseDrill([]byte(tt.data))
			assert.Error(t, err)
			assert.Nil(t, drill)
		})
	}
}

func TestManualScheduler(t *testing.T) {
	scheduler := NewManualScheduler()

	// Ensure ticking without jobs runs nothing.
	assert.Equal(t, scheduler.Tick(), 0)

	var first, second int
	cancelFirst, err := scheduler.Every(time.Second, func() { first++ })
	assert.NoError(t, err)
	cancelSecond, err := scheduler.Every(time.Second, func() { second++ })
	assert.NoError(t, err)
	assert.Equal(t, scheduler.Pending(), 2)

	// Ensure every registered job runs once per tick.
	assert.Equal(t, scheduler.Tick(), 2)
	assert.Equal(t, first, 1)
	assert.Equal(t, second, 1)

	// Ensure cancelled jobs no longer run and cancelling twice is harmless.
	cancelFirst()
	cancelFirst()
	assert.Equal(t, scheduler.Pending(), 1)
	assert.Equal(t, scheduler.Tick(), 1)
	assert.Equal(t, first, 1)
	assert.Equal(t, second, 2)
	cancelSecond()

	// Ensure a job cancelled by an earlier job in the same tick is skipped.
	var cancelLater func()
	var later int
	_, err = scheduler.Every(time.Second, func() { cancelLater() })
	assert.NoError(t, err)
	cancelLater, err = scheduler.Every(time.Second, func() { later++ })
	assert.NoError(t, err)

	assert.Equal(t, scheduler.Tick(), 1)
	assert.Equal(t, later, 0)
	assert.Equal(t, scheduler.Pending(), 1)
}
