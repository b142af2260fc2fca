package position

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/dnldd/dojo/director"
	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
)

var (
	// ErrPositionOpen is returned when opening a position while one is already open.
	ErrPositionOpen = errors.New("a position is already open")
	// ErrNoPosition is returned when flattening without an open position.
	ErrNoPosition = errors.New("no open position")
	// ErrSessionScored is returned when mutating a scored session.
	ErrSessionScored = errors.New("session already scored")
)

// SessionState represents the trading state of a session.
type SessionState int

const (
	Flat SessionState = iota
	Long
	Short
)

// String stringifies the provided session state.
func (s SessionState) String() string {
	switch s {
	case Flat:
		return "flat"
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// TradeAction represents a player trade action.
type TradeAction int

const (
	Buy TradeAction = iota
	Sell
	Flatten
)

// String stringifies the provided trade action.
func (a TradeAction) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Flatten:
		return "flatten"
	default:
		return "unknown"
	}
}

// ParseTradeAction parses a trade action from its string form.
func ParseTradeAction(s string) (TradeAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	case "flatten":
		return Flatten, nil
	default:
		return 0, fmt.Errorf("unknown trade action '%s'", s)
	}
}

// FormatPNL formats a profit or loss with two decimals.
func FormatPNL(pnl float64) string {
	return fmt.Sprintf("%.2f", pnl)
}

// Result represents the immutable outcome of a scored session.
type Result struct {
	Trades   []Trade
	PNL      float64
	RuleHits map[string]uint32
	Notes    string
	Score    int
}

// SessionConfig represents the trading session configuration.
type SessionConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SessionConfig) Validate() error {
	var errs error
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Session tracks the position, closed trades and rule hits of a played session. At most one
// position is open at a time.
type Session struct {
	cfg      *SessionConfig
	position *Position
	trades   []Trade
	ruleHits map[string]uint32
	notes    string
	result   *Result
	mtx      sync.RWMutex
}

// NewSession initializes a new trading session.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating session config: %w", err)
	}

	return &Session{
		cfg:      cfg,
		ruleHits: make(map[string]uint32),
	}, nil
}

// Open opens a position in the provided direction.
func (s *Session) Open(direction shared.Direction, price float64, at time.Time) (Position, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.result != nil {
		return Position{}, ErrSessionScored
	}
	if s.position != nil {
		return Position{}, ErrPositionOpen
	}

	pos, err := NewPosition(direction, price, at)
	if err != nil {
		return Position{}, fmt.Errorf("creating position: %w", err)
	}

	s.position = pos
	s.cfg.Logger.Debug().Msgf("opened %s position %s at %.2f", direction.String(), pos.ID, price)

	return *pos, nil
}

// Close closes the open position, recording it as a trade.
func (s *Session) Close(price float64, at time.Time) (Trade, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.result != nil {
		return Trade{}, ErrSessionScored
	}
	if s.position == nil {
		return Trade{}, ErrNoPosition
	}

	trade := s.position.Close(price, at)
	s.trades = append(s.trades, trade)
	s.position = nil
	s.cfg.Logger.Debug().Msgf("closed %s position %s at %.2f, pnl %s", trade.Direction.String(),
		trade.ID, price, FormatPNL(trade.PNL))

	return trade, nil
}

// Buy opens a long position.
func (s *Session) Buy(price float64, at time.Time) error {
	_, err := s.Open(shared.Long, price, at)
	return err
}

// Sell opens a short position.
func (s *Session) Sell(price float64, at time.Time) error {
	_, err := s.Open(shared.Short, price, at)
	return err
}

// Flatten closes the open position.
func (s *Session) Flatten(price float64, at time.Time) error {
	_, err := s.Close(price, at)
	return err
}

// HandleTradeAction applies the provided trade action at the provided price.
func (s *Session) HandleTradeAction(action TradeAction, price float64, at time.Time) error {
	switch action {
	case Buy:
		return s.Buy(price, at)
	case Sell:
		return s.Sell(price, at)
	case Flatten:
		return s.Flatten(price, at)
	default:
		return fmt.Errorf("unknown trade action %d", action)
	}
}

// State returns the trading state of the session.
func (s *Session) State() SessionState {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	switch {
	case s.position == nil:
		return Flat
	case s.position.Direction == shared.Short:
		return Short
	default:
		return Long
	}
}

// Position returns the open position.
func (s *Session) Position() (Position, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.position == nil {
		return Position{}, false
	}

	return *s.position, true
}

// ClosedTrades returns the closed trades in the order they were closed.
func (s *Session) ClosedTrades() []Trade {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	trades := make([]Trade, len(s.trades))
	copy(trades, s.trades)

	return trades
}

// UnrealizedPNL returns the profit or loss of the open position at the provided price, zero when
// flat.
func (s *Session) UnrealizedPNL(price float64) float64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.position == nil {
		return 0
	}

	return s.position.PNL(price)
}

// UnrealizedPNLString returns the unrealized pnl with two decimals.
func (s *Session) UnrealizedPNLString(price float64) string {
	return FormatPNL(s.UnrealizedPNL(price))
}

// realizedPNL sums the pnl of closed trades. It must be called with the lock held.
func (s *Session) realizedPNL() float64 {
	var pnl float64
	for idx := range s.trades {
		pnl += s.trades[idx].PNL
	}

	return pnl
}

// RealizedPNL returns the aggregate pnl of closed trades.
func (s *Session) RealizedPNL() float64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.realizedPNL()
}

// RealizedPNLString returns the realized pnl with two decimals.
func (s *Session) RealizedPNLString() string {
	return FormatPNL(s.RealizedPNL())
}

// AddRuleHit increments the hit count of the provided rule.
func (s *Session) AddRuleHit(rule string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.result != nil {
		return ErrSessionScored
	}

	s.ruleHits[rule]++
	s.cfg.Logger.Debug().Msgf("rule hit %s (%d)", rule, s.ruleHits[rule])

	return nil
}

// RuleHits returns the rule hit counts.
func (s *Session) RuleHits() map[string]uint32 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return maps.Clone(s.ruleHits)
}

// SetNotes sets the reflection notes of the session.
func (s *Session) SetNotes(notes string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.result != nil {
		return ErrSessionScored
	}

	s.notes = notes
	return nil
}

// Notes returns the reflection notes of the session.
func (s *Session) Notes() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.notes
}

// Score scores the session with the provided rubric, freezing it. A session can only be scored
// once.
func (s *Session) Score(rubric director.Rubric) (Result, error) {
	if rubric == nil {
		return Result{}, fmt.Errorf("rubric cannot be nil")
	}

	s.mtx.Lock()
	if s.result != nil {
		s.mtx.Unlock()
		return Result{}, ErrSessionScored
	}

	if s.position != nil {
		s.cfg.Logger.Warn().Msgf("scoring with open %s position %s, it is excluded from the result",
			s.position.Direction.String(), s.position.ID)
	}

	pnl := s.realizedPNL()
	hits := maps.Clone(s.ruleHits)
	trades := make([]Trade, len(s.trades))
	copy(trades, s.trades)
	notes := s.notes
	s.mtx.Unlock()

	// The rubric is drill supplied and may read the session.
	score := rubric(director.RubricInput{PNL: pnl, RuleHits: maps.Clone(hits)})

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.result != nil {
		return Result{}, ErrSessionScored
	}

	s.result = &Result{
		Trades:   trades,
		PNL:      pnl,
		RuleHits: hits,
		Notes:    notes,
		Score:    score,
	}
	s.cfg.Logger.Info().Msgf("session scored %d (pnl %s, %d trades)", s.result.Score,
		FormatPNL(pnl), len(trades))

	return s.copyResult(), nil
}

// copyResult returns a copy of the result. It must be called with the lock held.
func (s *Session) copyResult() Result {
	result := *s.result
	result.Trades = make([]Trade, len(s.result.Trades))
	copy(result.Trades, s.result.Trades)
	result.RuleHits = maps.Clone(s.result.RuleHits)

	return result
}

// Result returns the session result once scored.
func (s *Session) Result() (Result, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.result == nil {
		return Result{}, false
	}

	return s.copyResult(), true
}
