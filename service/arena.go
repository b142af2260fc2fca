package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dnldd/dojo/coach"
	"github.com/dnldd/dojo/director"
	"github.com/dnldd/dojo/indicator"
	"github.com/dnldd/dojo/position"
	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// ErrNotLoaded is returned when starting an arena before its candles are loaded.
	ErrNotLoaded = errors.New("arena candles not loaded")
	// ErrNotInPlay is returned for trade actions outside the play phase.
	ErrNotInPlay = errors.New("trade actions are only allowed during play")
	// ErrNotInReview is returned when finishing a review outside the review phase.
	ErrNotInReview = errors.New("review can only be finished during review")
	// ErrSessionPlayed is returned when starting an arena whose session is already scored.
	ErrSessionPlayed = errors.New("arena session already played")
)

// ArenaConfig represents the configuration struct for an arena.
type ArenaConfig struct {
	// Drill is the session definition to play.
	Drill *director.Drill
	// Source provides the candle data of the drill.
	Source shared.CandleSource
	// Journal persists the journal entry of the scored session.
	Journal shared.JournalStorer
	// Rewards credits the drill reward on completion. Optional.
	Rewards shared.RewardCrediter
	// Profile is the profile credited with the drill reward.
	Profile string
	// Scheduler runs the play phase tick.
	Scheduler director.Scheduler
	// TipCooldown is the minimum time between two coaching tips.
	TipCooldown time.Duration
	// EMAPeriod is the exponential moving average period. Defaults to 200.
	EMAPeriod int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Diagnostics is the optional debug inspection port.
	Diagnostics Diagnostics
	// OnUpdate is called with a fresh snapshot after every state change. Optional.
	OnUpdate func(snapshot Snapshot)
}

// Validate asserts the config sane inputs.
func (cfg *ArenaConfig) Validate() error {
	var errs error
	if cfg.Drill == nil {
		errs = errors.Join(errs, fmt.Errorf("drill cannot be nil"))
	} else if err := cfg.Drill.Validate(); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.Source == nil {
		errs = errors.Join(errs, fmt.Errorf("candle source cannot be nil"))
	}
	if cfg.Journal == nil {
		errs = errors.Join(errs, fmt.Errorf("journal storer cannot be nil"))
	}
	if cfg.Rewards != nil && cfg.Profile == "" {
		errs = errors.Join(errs, fmt.Errorf("profile cannot be an empty string when crediting rewards"))
	}
	if cfg.Scheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("scheduler cannot be nil"))
	}
	if cfg.TipCooldown < 0 {
		errs = errors.Join(errs, fmt.Errorf("tip cooldown cannot be negative"))
	}
	if cfg.EMAPeriod < 0 {
		errs = errors.Join(errs, fmt.Errorf("ema period cannot be negative"))
	}

	return errs
}

// Snapshot represents the observable state of an arena.
type Snapshot struct {
	DrillID   string
	Phase     director.Phase
	HasPhase  bool
	Remaining int
	Tip       string
	// Checkpoints are the rules announced for the session.
	Checkpoints []string
	Price       float64
	Time        time.Time
	State       position.SessionState
	// Position is the open position, nil when flat.
	Position      *position.Position
	UnrealizedPNL string
	RealizedPNL   string
	ClosedTrades  []position.Trade
	RuleHits      map[string]uint32
	Timeframe     shared.Timeframe
	// Candles are the candles of the selected timeframe revealed so far.
	Candles    []shared.Candlestick
	Indicators *indicator.Set
	// Result is the scored outcome, nil before scoring.
	Result *position.Result
}

// Arena plays one drill: it sequences the phases, replays the candles through the play window,
// routes trade actions and coaching, and scores, journals and rewards the session.
type Arena struct {
	cfg        *ArenaConfig
	director   *director.Director
	session    *position.Session
	coach      *coach.Evaluator
	calculator *indicator.Calculator
	logger     *zerolog.Logger

	all         shared.AllCandleData
	loaded      bool
	timeframe   shared.Timeframe
	indicators  *indicator.Set
	cursor      int
	phase       director.Phase
	hasPhase    bool
	remaining   int
	tip         string
	checkpoints []string
	entry       *shared.JournalEntry
	journaled   bool
	rewarded    bool
	done        chan struct{}
	doneOnce    sync.Once
	mtx         sync.RWMutex
}

// NewArena initializes a new arena.
func NewArena(cfg *ArenaConfig) (*Arena, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating arena config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "arena").Str("drill", cfg.Drill.ID).Logger()

	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.EMAPeriod == 0 {
		cfg.EMAPeriod = indicator.DefaultEMAPeriod
	}

	arena := &Arena{
		cfg:       cfg,
		logger:    &logger,
		timeframe: cfg.Drill.Timeframe,
		done:      make(chan struct{}),
	}

	var err error
	sessionLogger := logger.With().Str("component", "session").Logger()
	arena.session, err = position.NewSession(&position.SessionConfig{Logger: &sessionLogger})
	if err != nil {
		return nil, fmt.Errorf("creating trading session: %w", err)
	}

	coachLogger := logger.With().Str("component", "coach").Logger()
	arena.coach, err = coach.NewEvaluator(&coach.EvaluatorConfig{
		Cooldown: cfg.TipCooldown,
		Now:      cfg.Now,
		Logger:   &coachLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating coach: %w", err)
	}

	calculatorLogger := logger.With().Str("component", "indicator").Logger()
	arena.calculator, err = indicator.NewCalculator(&indicator.CalculatorConfig{
		EMAPeriod: cfg.EMAPeriod,
		Logger:    &calculatorLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating indicator calculator: %w", err)
	}

	directorLogger := logger.With().Str("component", "director").Logger()
	arena.director, err = director.NewDirector(&director.Config{
		Drill:         cfg.Drill,
		Scheduler:     cfg.Scheduler,
		OnPhaseChange: arena.handlePhaseChange,
		OnTick:        arena.handleTick,
		OnTip:         arena.handleTip,
		OnEvent:       arena.handleEvent,
		Logger:        &directorLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating director: %w", err)
	}

	return arena, nil
}

// publish sends a fresh snapshot to the update hook. It must be called without holding the lock.
func (a *Arena) publish() {
	if a.cfg.OnUpdate != nil {
		a.cfg.OnUpdate(a.Snapshot())
	}
}

// Load fetches the candle data of the drill. It must complete before the arena is started.
func (a *Arena) Load(ctx context.Context) error {
	all, err := a.cfg.Source.GetAllCandles(ctx, a.cfg.Drill.MarketKey(), a.cfg.Drill.AnchorDate)
	if err != nil {
		return fmt.Errorf("fetching candles for %s: %w", a.cfg.Drill.MarketKey(), err)
	}

	if len(all[shared.OneMinute]) == 0 {
		return fmt.Errorf("no one minute candles for %s", a.cfg.Drill.MarketKey())
	}

	a.mtx.Lock()
	a.all = all
	a.indicators = a.calculator.Compute(all, a.timeframe)
	a.cursor = 0
	a.loaded = true
	a.mtx.Unlock()

	a.logger.Info().Msgf("loaded %d one minute candles", len(all[shared.OneMinute]))
	a.publish()

	return nil
}

// Start starts the drill. An arena plays a single session, a scored arena cannot be restarted.
func (a *Arena) Start() error {
	a.mtx.RLock()
	loaded := a.loaded
	a.mtx.RUnlock()

	if !loaded {
		return ErrNotLoaded
	}
	if _, scored := a.session.Result(); scored {
		return ErrSessionPlayed
	}

	if a.cfg.Diagnostics != nil {
		a.cfg.Diagnostics.Attach(a.probeName(), func() any { return a.Snapshot() })
	}

	err := a.director.Start()
	if err != nil {
		return fmt.Errorf("starting director: %w", err)
	}

	return nil
}

// Stop stops the drill. It is safe to call repeatedly.
func (a *Arena) Stop() {
	a.director.Stop()

	if a.cfg.Diagnostics != nil {
		a.cfg.Diagnostics.Detach(a.probeName())
	}
}

// probeName returns the diagnostics probe name of the arena.
func (a *Arena) probeName() string {
	return "arena/" + a.cfg.Drill.ID
}

// Done returns a channel closed once the final phase of the drill is entered.
func (a *Arena) Done() <-chan struct{} {
	return a.done
}

// AdvancePhase moves the drill to its next phase.
func (a *Arena) AdvancePhase() bool {
	return a.director.AdvancePhase()
}

// Remaining returns the remaining play time in seconds.
func (a *Arena) Remaining() int {
	return a.director.Remaining()
}

// SetTimeframe selects the timeframe candles and indicators are presented in.
func (a *Arena) SetTimeframe(timeframe shared.Timeframe) error {
	if timeframe.Multiple() == 0 {
		return fmt.Errorf("unsupported timeframe %d", timeframe)
	}

	a.mtx.Lock()
	a.timeframe = timeframe
	if a.loaded {
		a.indicators = a.calculator.Compute(a.all, timeframe)
	}
	a.mtx.Unlock()

	a.logger.Debug().Msgf("timeframe set to %s", timeframe.String())
	a.publish()

	return nil
}

// current returns the price and time of the replay cursor. It must be called with the lock held.
func (a *Arena) current() (float64, time.Time) {
	oneMinute := a.all[shared.OneMinute]
	if len(oneMinute) == 0 {
		return 0, time.Time{}
	}

	candle := oneMinute[a.cursor]
	return candle.Close, candle.Date()
}

// trade applies a trade action at the replay cursor.
func (a *Arena) trade(action position.TradeAction) error {
	a.mtx.RLock()
	inPlay := a.hasPhase && a.phase.ID == director.Play
	price, at := a.current()
	a.mtx.RUnlock()

	if !inPlay {
		return ErrNotInPlay
	}

	err := a.session.HandleTradeAction(action, price, at)
	if err != nil {
		return fmt.Errorf("handling %s: %w", action.String(), err)
	}

	a.publish()
	return nil
}

// Buy opens a long position at the current price.
func (a *Arena) Buy() error {
	return a.trade(position.Buy)
}

// Sell opens a short position at the current price.
func (a *Arena) Sell() error {
	return a.trade(position.Sell)
}

// Flatten closes the open position at the current price.
func (a *Arena) Flatten() error {
	return a.trade(position.Flatten)
}

// SetNotes sets the reflection notes of the session.
func (a *Arena) SetNotes(notes string) error {
	err := a.session.SetNotes(notes)
	if err != nil {
		return err
	}

	a.publish()
	return nil
}

// FinishReview scores the session with the drill rubric, journals it, credits the drill reward
// and advances to the score phase. Retrying after a collaborator failure resumes from the failed
// step.
func (a *Arena) FinishReview(ctx context.Context) (position.Result, error) {
	a.mtx.RLock()
	inReview := a.hasPhase && a.phase.ID == director.Review
	a.mtx.RUnlock()

	if !inReview {
		return position.Result{}, ErrNotInReview
	}

	result, scored := a.session.Result()
	if !scored {
		var err error
		result, err = a.session.Score(a.cfg.Drill.Scoring.Rubric)
		if err != nil {
			return position.Result{}, fmt.Errorf("scoring session: %w", err)
		}
	}

	a.mtx.Lock()
	if a.entry == nil {
		a.entry = shared.NewJournalEntry(a.cfg.Drill.ID, result.PNL, result.Score, result.Notes,
			result.RuleHits, a.cfg.Now())
	}
	entry := a.entry
	journaled := a.journaled
	rewarded := a.rewarded
	a.mtx.Unlock()

	if !journaled {
		err := a.cfg.Journal.SaveJournalEntry(ctx, entry)
		if err != nil {
			return result, fmt.Errorf("saving journal entry: %w", err)
		}

		a.mtx.Lock()
		a.journaled = true
		a.mtx.Unlock()
	}

	if !rewarded && a.cfg.Rewards != nil && a.cfg.Drill.Reward > 0 {
		err := a.cfg.Rewards.CreditReward(ctx, a.cfg.Profile, a.cfg.Drill.Reward)
		if err != nil {
			return result, fmt.Errorf("crediting reward: %w", err)
		}

		a.mtx.Lock()
		a.rewarded = true
		a.mtx.Unlock()
	}

	a.logger.Info().Msgf("review finished, score %d", result.Score)
	a.director.AdvancePhase()

	return result, nil
}

// visibleCandles returns the candles of the selected timeframe revealed by the replay cursor. It
// must be called with the lock held.
func (a *Arena) visibleCandles() []shared.Candlestick {
	candles := a.all[a.timeframe]
	oneMinute := a.all[shared.OneMinute]
	if len(oneMinute) == 0 {
		return []shared.Candlestick{}
	}

	cutoff := oneMinute[a.cursor].Timestamp
	end := 0
	for end < len(candles) && candles[end].Timestamp <= cutoff {
		end++
	}

	visible := make([]shared.Candlestick, end)
	copy(visible, candles[:end])

	return visible
}

// Snapshot returns the observable state of the arena.
func (a *Arena) Snapshot() Snapshot {
	a.mtx.RLock()
	price, at := a.current()
	snapshot := Snapshot{
		DrillID:     a.cfg.Drill.ID,
		Phase:       a.phase,
		HasPhase:    a.hasPhase,
		Remaining:   a.remaining,
		Tip:         a.tip,
		Checkpoints: append([]string(nil), a.checkpoints...),
		Price:       price,
		Time:        at,
		Timeframe:   a.timeframe,
		Candles:     a.visibleCandles(),
		Indicators:  a.indicators,
	}
	a.mtx.RUnlock()

	snapshot.State = a.session.State()
	if pos, ok := a.session.Position(); ok {
		snapshot.Position = &pos
	}
	snapshot.UnrealizedPNL = a.session.UnrealizedPNLString(price)
	snapshot.RealizedPNL = a.session.RealizedPNLString()
	snapshot.ClosedTrades = a.session.ClosedTrades()
	snapshot.RuleHits = a.session.RuleHits()
	if result, ok := a.session.Result(); ok {
		snapshot.Result = &result
	}

	return snapshot
}

// handlePhaseChange records the entered phase.
func (a *Arena) handlePhaseChange(phase director.Phase) {
	a.mtx.Lock()
	a.phase = phase
	a.hasPhase = true
	if !phase.Timed() {
		a.remaining = 0
	}
	a.mtx.Unlock()

	a.logger.Info().Msgf("entered %s phase (%s)", phase.ID.String(), phase.Title)

	if a.director.Finished() {
		a.doneOnce.Do(func() { close(a.done) })
	}

	a.publish()
}

// handleTick moves the replay cursor with the play clock and evaluates the coach at the new
// price.
func (a *Arena) handleTick(remaining int) {
	a.mtx.Lock()
	a.remaining = remaining
	if total := a.phase.DurationSec; total > 0 && len(a.all[shared.OneMinute]) > 0 {
		count := len(a.all[shared.OneMinute])
		progress := float64(total-remaining) / float64(total)
		a.cursor = min(int(math.Floor(progress*float64(count))), count-1)
		a.cursor = max(a.cursor, 0)
	}
	price, _ := a.current()
	indicators := a.indicators
	a.mtx.Unlock()

	state := coach.State{Price: price, Indicators: indicators}
	if pos, ok := a.session.Position(); ok {
		state.Position = &pos
	}

	advice := a.coach.Evaluate(state)
	if advice.Tip != "" {
		a.mtx.Lock()
		a.tip = advice.Tip
		a.mtx.Unlock()
	}
	if advice.RuleHit != "" {
		err := a.session.AddRuleHit(advice.RuleHit)
		if err != nil {
			a.logger.Error().Msgf("recording rule hit %s: %v", advice.RuleHit, err)
		}
	}

	a.publish()
}

// handleTip surfaces advisory text.
func (a *Arena) handleTip(text string) {
	a.mtx.Lock()
	a.tip = text
	a.mtx.Unlock()

	a.publish()
}

// handleEvent records non-tip phase events.
func (a *Arena) handleEvent(event director.Event) {
	switch ev := event.(type) {
	case director.SpawnCheckpoint:
		a.mtx.Lock()
		a.checkpoints = append(a.checkpoints, ev.Rule)
		a.mtx.Unlock()
		a.logger.Info().Msgf("checkpoint: %s", ev.Rule)

	case director.EndPlay:
		a.logger.Info().Msgf("play ended: %s", ev.Reason.String())

	default:
		a.logger.Warn().Msgf("unhandled phase event %s", event.Kind().String())
	}
}
