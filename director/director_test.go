package director

import (
	"sync"
	"testing"
	"time"

	"github.com/dnldd/dojo/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// recorder captures director notifications.
type recorder struct {
	phases []PhaseID
	ticks  []int
	tips   []string
	events []Event
	order  []string
	mtx    sync.Mutex
}

func (r *recorder) config(drill *Drill, scheduler Scheduler) *Config {
	return &Config{
		Drill:     drill,
		Scheduler: scheduler,
		OnPhaseChange: func(phase Phase) {
			r.mtx.Lock()
			defer r.mtx.Unlock()
			r.phases = append(r.phases, phase.ID)
			r.order = append(r.order, "phase:"+phase.ID.String())
		},
		OnTick: func(remaining int) {
			r.mtx.Lock()
			defer r.mtx.Unlock()
			r.ticks = append(r.ticks, remaining)
		},
		OnTip: func(text string) {
			r.mtx.Lock()
			defer r.mtx.Unlock()
			r.tips = append(r.tips, text)
			r.order = append(r.order, "tip:"+text)
		},
		OnEvent: func(event Event) {
			r.mtx.Lock()
			defer r.mtx.Unlock()
			r.events = append(r.events, event)
		},
		Logger: &log.Logger,
	}
}

func (r *recorder) phaseIDs() []PhaseID {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]PhaseID(nil), r.phases...)
}

func (r *recorder) tickValues() []int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]int(nil), r.ticks...)
}

// signDrill returns a drill with a single timed play phase scored by 50 + round(10*sign(pnl)).
func signDrill(duration int) *Drill {
	return &Drill{
		ID:        "sign-drill",
		Symbol:    "MES",
		Timeframe: shared.OneMinute,
		Phases: []Phase{
			{ID: Play, Title: "Play", DurationSec: duration},
			{ID: Review, Title: "Review"},
			{ID: Score, Title: "Score"},
		},
		Scoring: Scoring{
			Rubric: func(input RubricInput) int {
				switch {
				case input.PNL > 0:
					return 60
				case input.PNL < 0:
					return 40
				default:
					return 50
				}
			},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	rec := &recorder{}
	valid := rec.config(ReplayDrill(), NewManualScheduler())

	tests := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{name: "missing drill", modify: func(cfg *Config) { cfg.Drill = nil }},
		{name: "invalid drill", modify: func(cfg *Config) { cfg.Drill = &Drill{} }},
		{name: "missing scheduler", modify: func(cfg *Config) { cfg.Scheduler = nil }},
		{name: "missing phase change func", modify: func(cfg *Config) { cfg.OnPhaseChange = nil }},
		{name: "missing tick func", modify: func(cfg *Config) { cfg.OnTick = nil }},
		{name: "missing tip func", modify: func(cfg *Config) { cfg.OnTip = nil }},
		{name: "missing logger", modify: func(cfg *Config) { cfg.Logger = nil }},
	}

	// Ensure a complete config is valid.
	assert.NoError(t, valid.Validate())

	for _, test := range tests {
		cfg := *valid
		test.modify(&cfg)
		if _, err := NewDirector(&cfg); err == nil {
			t.Errorf("%s: expected an error", test.name)
		}
	}

	// Ensure the event hook is optional.
	cfg := *valid
	cfg.OnEvent = nil
	assert.NoError(t, cfg.Validate())
}

func TestDirectorPhaseOrdering(t *testing.T) {
	rec := &recorder{}
	scheduler := NewManualScheduler()
	director, err := NewDirector(rec.config(ReplayDrill(), scheduler))
	assert.NoError(t, err)

	// Ensure advancing before starting is a no-op.
	assert.False(t, director.AdvancePhase())
	_, ok := director.Current()
	assert.False(t, ok)

	// Ensure starting enters the first phase and surfaces its tip.
	assert.NoError(t, director.Start())
	phase, ok := director.Current()
	assert.True(t, ok)
	assert.Equal(t, phase.ID, Brief)
	assert.Equal(t, rec.tips[0], "Scope: trade only pullbacks to VWAP.")

	// Ensure starting twice is rejected.
	assert.Equal(t, director.Start(), ErrAlreadyStarted, cmpopts.EquateErrors())

	// Ensure entering play reports the full duration and starts the timer.
	assert.True(t, director.AdvancePhase())
	assert.Equal(t, director.Remaining(), 180)
	assert.Equal(t, scheduler.Pending(), 1)
	assert.Equal(t, len(rec.events), 2)
	assert.Equal(t, rec.events[0].Kind(), SpawnCheckpointEvent)

	// Ensure advancing manually cancels the timer.
	assert.True(t, director.AdvancePhase())
	assert.Equal(t, scheduler.Pending(), 0)
	assert.True(t, director.AdvancePhase())
	assert.True(t, director.Finished())

	// Ensure advancing past the last phase produces no further notifications.
	assert.False(t, director.AdvancePhase())
	assert.False(t, director.AdvancePhase())

	want := []PhaseID{Brief, Play, Review, Score}
	if diff := cmp.Diff(want, rec.phaseIDs()); diff != "" {
		t.Errorf("unexpected phase order (-want +got):\n%s", diff)
	}
	assert.Equal(t, rec.tickValues(), []int{180})

	// Ensure tips on enter surface after the phase change notification.
	assert.Equal(t, rec.order[0], "phase:brief")
	assert.Equal(t, rec.order[1], "tip:Scope: trade only pullbacks to VWAP.")
}

func TestDirectorTimeout(t *testing.T) {
	rec := &recorder{}
	scheduler := NewManualScheduler()
	director, err := NewDirector(rec.config(signDrill(3), scheduler))
	assert.NoError(t, err)
	assert.NoError(t, director.Start())

	// Ensure the play window counts down once per tick.
	assert.Equal(t, scheduler.Tick(), 1)
	assert.Equal(t, scheduler.Tick(), 1)
	phase, _ := director.Current()
	assert.Equal(t, phase.ID, Play)
	assert.Equal(t, director.Remaining(), 1)

	// Ensure reaching zero advances to review exactly once.
	assert.Equal(t, scheduler.Tick(), 1)
	phase, _ = director.Current()
	assert.Equal(t, phase.ID, Review)
	assert.Equal(t, scheduler.Pending(), 0)
	assert.Equal(t, scheduler.Tick(), 0)

	assert.Equal(t, rec.tickValues(), []int{3, 2, 1, 0})
	assert.Equal(t, rec.phaseIDs(), []PhaseID{Play, Review})
	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0], Event(EndPlay{Reason: Timeout}))

	// Ensure a realized pnl of +5 scores 60 on the review to score transition.
	score := director.cfg.Drill.Scoring.Rubric(RubricInput{PNL: 5})
	assert.Equal(t, score, 60)
	assert.True(t, director.AdvancePhase())
	assert.True(t, director.Finished())
}

func TestDirectorStop(t *testing.T) {
	rec := &recorder{}
	scheduler := NewManualScheduler()
	director, err := NewDirector(rec.config(signDrill(5), scheduler))
	assert.NoError(t, err)

	// Ensure stopping an unstarted director is harmless.
	director.Stop()

	assert.NoError(t, director.Start())
	assert.Equal(t, scheduler.Pending(), 1)
	scheduler.Tick()

	// Ensure stopping cancels the tick and is idempotent.
	director.Stop()
	director.Stop()
	assert.False(t, director.Running())
	assert.Equal(t, scheduler.Pending(), 0)
	assert.Equal(t, scheduler.Tick(), 0)
	assert.Equal(t, rec.tickValues(), []int{5, 4})

	// Ensure a stopped director cannot advance.
	assert.False(t, director.AdvancePhase())

	// Ensure starting after a stop restarts the drill.
	assert.NoError(t, director.Start())
	phase, _ := director.Current()
	assert.Equal(t, phase.ID, Play)
	assert.Equal(t, director.Remaining(), 5)
	assert.Equal(t, rec.tickValues(), []int{5, 4, 5})
	director.Stop()
}

func TestDirectorStaleTick(t *testing.T) {
	rec := &recorder{}
	director, err := NewDirector(rec.config(signDrill(5), NewManualScheduler()))
	assert.NoError(t, err)
	assert.NoError(t, director.Start())

	// Ensure a fire from a cancelled timer is ignored.
	stale := director.generation - 1
	director.tick(stale)
	assert.Equal(t, director.Remaining(), 5)
	assert.Equal(t, rec.tickValues(), []int{5})
}

func TestDirectorUntimedPlay(t *testing.T) {
	rec := &recorder{}
	scheduler := NewManualScheduler()
	director, err := NewDirector(rec.config(signDrill(0), scheduler))
	assert.NoError(t, err)
	assert.NoError(t, director.Start())

	// Ensure a play phase without a duration never starts a timer.
	assert.Equal(t, scheduler.Pending(), 0)
	assert.Equal(t, len(rec.tickValues()), 0)

	// Ensure it can be advanced manually.
	assert.True(t, director.AdvancePhase())
	phase, _ := director.Current()
	assert.Equal(t, phase.ID, Review)
}

func TestDirectorTickAndExitEvents(t *testing.T) {
	drill := signDrill(2)
	drill.Phases[0].OnTick = []Event{ShowTip{Text: "watch vwap", When: MilestoneTrigger}}
	drill.Phases[0].OnExit = []Event{ShowTip{Text: "play over", When: MilestoneTrigger}}

	rec := &recorder{}
	scheduler := NewManualScheduler()
	director, err := NewDirector(rec.config(drill, scheduler))
	assert.NoError(t, err)
	assert.NoError(t, director.Start())

	scheduler.Tick()
	scheduler.Tick()

	// Ensure tick tips surface every tick and exit tips surface on leaving the phase.
	assert.Equal(t, rec.tips, []string{"watch vwap", "watch vwap", "play over"})
	phase, _ := director.Current()
	assert.Equal(t, phase.ID, Review)
}

func TestDirectorCallbackReentry(t *testing.T) {
	scheduler := NewManualScheduler()
	var director *Director
	var phases []PhaseID

	cfg := &Config{
		Drill:     signDrill(0),
		Scheduler: scheduler,
		OnPhaseChange: func(phase Phase) {
			phases = append(phases, phase.ID)
			if phase.ID == Review {
				// Ensure hosts may call back into the director from a notification.
				director.AdvancePhase()
			}
		},
		OnTick: func(int) {},
		OnTip:  func(string) {},
		Logger: &log.Logger,
	}

	var err error
	director, err = NewDirector(cfg)
	assert.NoError(t, err)
	assert.NoError(t, director.Start())
	director.AdvancePhase()

	assert.Equal(t, phases, []PhaseID{Play, Review, Score})
}

func TestGocronScheduler(t *testing.T) {
	scheduler := NewGocronScheduler(time.UTC)
	defer scheduler.Stop()

	fired := make(chan struct{}, 4)
	cancel, err := scheduler.Every(time.Second, func() { fired <- struct{}{} })
	assert.NoError(t, err)

	// Ensure the job runs on the wall clock.
	select {
	case <-fired:
	case <-time.After(time.Second * 3):
		t.Fatal("expected the scheduled job to run")
	}

	// Ensure cancelling is idempotent.
	cancel()
	cancel()
}
