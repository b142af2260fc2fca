package director

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// tickInterval is the play phase countdown resolution.
	tickInterval = time.Second
)

var (
	// ErrAlreadyStarted is returned when starting a running director.
	ErrAlreadyStarted = errors.New("director already started")
	// ErrNotStarted is returned when operating a director that has not been started.
	ErrNotStarted = errors.New("director not started")
)

// Config represents the director configuration.
type Config struct {
	// Drill is the session definition the director sequences.
	Drill *Drill
	// Scheduler runs the play phase tick.
	Scheduler Scheduler
	// OnPhaseChange is called with every phase entered.
	OnPhaseChange func(phase Phase)
	// OnTick is called with the remaining play time in seconds.
	OnTick func(remaining int)
	// OnTip is called with advisory text to surface.
	OnTip func(text string)
	// OnEvent is called with every non-tip phase event. Optional.
	OnEvent func(event Event)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error
	if cfg.Drill == nil {
		errs = errors.Join(errs, fmt.Errorf("drill cannot be nil"))
	} else if err := cfg.Drill.Validate(); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.Scheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("scheduler cannot be nil"))
	}
	if cfg.OnPhaseChange == nil {
		errs = errors.Join(errs, fmt.Errorf("phase change function cannot be nil"))
	}
	if cfg.OnTick == nil {
		errs = errors.Join(errs, fmt.Errorf("tick function cannot be nil"))
	}
	if cfg.OnTip == nil {
		errs = errors.Join(errs, fmt.Errorf("tip function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Director sequences the phases of a drill, ticking down the play window.
type Director struct {
	cfg        *Config
	started    bool
	index      int
	remaining  int
	cancel     func()
	generation uint64
	mtx        sync.Mutex
}

// NewDirector initializes a new director.
func NewDirector(cfg *Config) (*Director, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating director config: %w", err)
	}

	return &Director{cfg: cfg, index: -1}, nil
}

// notify runs the provided notifications in order. It must be called without holding the lock.
func (d *Director) notify(notes []func()) {
	for _, note := range notes {
		note()
	}
}

// eventNotes returns notifications for the provided events. Tips surface through OnTip, every
// other event through OnEvent.
func (d *Director) eventNotes(events []Event) []func() {
	notes := make([]func(), 0, len(events))
	for _, event := range events {
		switch ev := event.(type) {
		case ShowTip:
			notes = append(notes, func() { d.cfg.OnTip(ev.Text) })
		default:
			if d.cfg.OnEvent != nil {
				notes = append(notes, func() { d.cfg.OnEvent(ev) })
			}
		}
	}

	return notes
}

// Start enters the first phase of the drill. Starting a stopped director restarts the drill.
func (d *Director) Start() error {
	d.mtx.Lock()
	if d.started {
		d.mtx.Unlock()
		return ErrAlreadyStarted
	}

	d.started = true
	d.index = -1
	d.cfg.Logger.Info().Msgf("starting drill %s (%d phases)", d.cfg.Drill.ID, len(d.cfg.Drill.Phases))
	notes, _ := d.advanceLocked(false)
	d.mtx.Unlock()

	d.notify(notes)
	return nil
}

// Stop cancels any running tick. It is safe to call repeatedly.
func (d *Director) Stop() {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if !d.started {
		return
	}

	d.stopTimerLocked()
	d.started = false
	d.cfg.Logger.Info().Msgf("stopped drill %s", d.cfg.Drill.ID)
}

// AdvancePhase moves to the next phase. It reports whether a new phase was entered, advancing
// past the last phase or before starting is a no-op.
func (d *Director) AdvancePhase() bool {
	d.mtx.Lock()
	notes, moved := d.advanceLocked(false)
	d.mtx.Unlock()

	d.notify(notes)
	return moved
}

// Current returns the active phase.
func (d *Director) Current() (Phase, bool) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.index < 0 {
		return Phase{}, false
	}

	return d.cfg.Drill.Phases[d.index], true
}

// Remaining returns the remaining play time in seconds.
func (d *Director) Remaining() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.remaining
}

// Finished checks whether the last phase of the drill has been reached.
func (d *Director) Finished() bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.index == len(d.cfg.Drill.Phases)-1
}

// Running checks whether the director has been started and not stopped.
func (d *Director) Running() bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.started
}

// stopTimerLocked cancels the running tick, invalidating any fire already in flight.
func (d *Director) stopTimerLocked() {
	d.generation++
	if d.cancel == nil {
		return
	}

	d.cancel()
	d.cancel = nil
	d.cfg.Logger.Debug().Msgf("stopped play timer of drill %s", d.cfg.Drill.ID)
}

// startTimerLocked schedules the play tick.
func (d *Director) startTimerLocked() {
	gen := d.generation
	cancel, err := d.cfg.Scheduler.Every(tickInterval, func() { d.tick(gen) })
	if err != nil {
		d.cfg.Logger.Error().Msgf("play timer of drill %s not started, advance manually: %v",
			d.cfg.Drill.ID, err)
		return
	}

	d.cancel = cancel
	d.cfg.Logger.Debug().Msgf("started play timer of drill %s (%ds)", d.cfg.Drill.ID, d.remaining)
}

// advanceLocked moves to the next phase and returns the notifications to deliver once the lock is
// released.
func (d *Director) advanceLocked(timedOut bool) ([]func(), bool) {
	if !d.started {
		d.cfg.Logger.Warn().Msgf("advance of drill %s ignored: %v", d.cfg.Drill.ID, ErrNotStarted)
		return nil, false
	}

	phases := d.cfg.Drill.Phases
	d.stopTimerLocked()

	var notes []func()
	if timedOut && d.cfg.OnEvent != nil {
		notes = append(notes, func() { d.cfg.OnEvent(EndPlay{Reason: Timeout}) })
	}

	if d.index+1 >= len(phases) {
		d.cfg.Logger.Warn().Msgf("advance of drill %s ignored: no phase after %s",
			d.cfg.Drill.ID, phases[d.index].ID.String())
		return notes, false
	}

	from := "none"
	if d.index >= 0 {
		from = phases[d.index].ID.String()
		notes = append(notes, d.eventNotes(phases[d.index].OnExit)...)
	}

	d.index++
	phase := phases[d.index]
	d.remaining = 0
	d.cfg.Logger.Debug().Msgf("drill %s: %s -> %s", d.cfg.Drill.ID, from, phase.ID.String())

	notes = append(notes, func() { d.cfg.OnPhaseChange(phase) })
	notes = append(notes, d.eventNotes(phase.OnEnter)...)

	switch {
	case phase.Timed():
		d.remaining = phase.DurationSec
		remaining := d.remaining
		notes = append(notes, func() { d.cfg.OnTick(remaining) })
		d.startTimerLocked()

	case phase.ID == Play:
		d.cfg.Logger.Warn().Msgf("play phase of drill %s has no duration, it must be advanced manually",
			d.cfg.Drill.ID)
	}

	return notes, true
}

// tick counts the play phase down by a second, advancing when time runs out.
func (d *Director) tick(gen uint64) {
	d.mtx.Lock()
	if !d.started || gen != d.generation || d.cancel == nil {
		d.mtx.Unlock()
		d.cfg.Logger.Debug().Msgf("ignoring stale tick of drill %s", d.cfg.Drill.ID)
		return
	}

	d.remaining--
	remaining := d.remaining
	notes := []func(){func() { d.cfg.OnTick(remaining) }}
	notes = append(notes, d.eventNotes(d.cfg.Drill.Phases[d.index].OnTick)...)

	if remaining <= 0 {
		d.cfg.Logger.Info().Msgf("play window of drill %s elapsed", d.cfg.Drill.ID)
		more, _ := d.advanceLocked(true)
		notes = append(notes, more...)
	}
	d.mtx.Unlock()

	d.notify(notes)
}
