package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dnldd/dojo/director"
	"github.com/dnldd/dojo/indicator"
	"github.com/dnldd/dojo/position"
	"github.com/dnldd/dojo/service"
	"github.com/rs/zerolog"
)

// autopilotConfig represents the configuration of a headless arena host.
type autopilotConfig struct {
	// Manual is the manual play clock. The arena runs on wall time when nil.
	Manual *director.ManualScheduler
	// Notes are the reflection notes submitted at review.
	Notes string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// autopilot plays an arena without a user: it enters a position against the session vwap early in
// play, flattens it once a third of the play time remains and submits the review.
type autopilot struct {
	cfg     *autopilotConfig
	arena   *service.Arena
	updates chan struct{}
	traded  bool
}

// newAutopilot initializes a new autopilot.
func newAutopilot(cfg *autopilotConfig) (*autopilot, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &autopilot{
		cfg:     cfg,
		updates: make(chan struct{}, 1),
	}, nil
}

// attach binds the autopilot to the arena it drives.
func (p *autopilot) attach(arena *service.Arena) {
	p.arena = arena
}

// notify signals an arena state change. It is the arena update hook.
func (p *autopilot) notify(_ service.Snapshot) {
	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// vwapAt returns the last vwap value at or before the provided timestamp.
func vwapAt(points []indicator.Point, timestamp int64) (float64, bool) {
	var value float64
	var found bool
	for _, point := range points {
		if point.Timestamp > timestamp {
			break
		}
		value = point.Value
		found = true
	}

	return value, found
}

// act applies the trading strategy to the provided play snapshot.
func (p *autopilot) act(snapshot service.Snapshot) {
	switch {
	case snapshot.State == position.Flat && !p.traded:
		if snapshot.Indicators == nil {
			return
		}
		vwap, ok := vwapAt(snapshot.Indicators.VWAP, snapshot.Time.UnixMilli())
		if !ok {
			return
		}

		var err error
		if snapshot.Price >= vwap {
			err = p.arena.Buy()
		} else {
			err = p.arena.Sell()
		}
		if err != nil {
			p.cfg.Logger.Warn().Err(err).Msg("entering position")
			return
		}
		p.traded = true

	case snapshot.State != position.Flat && snapshot.Phase.DurationSec > 0 &&
		snapshot.Remaining*3 <= snapshot.Phase.DurationSec:
		err := p.arena.Flatten()
		if err != nil {
			p.cfg.Logger.Warn().Err(err).Msg("flattening position")
		}
	}
}

// wait blocks until the arena publishes an update.
func (p *autopilot) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.updates:
		return nil
	}
}

// run plays the attached arena through to its score phase.
func (p *autopilot) run(ctx context.Context) (position.Result, error) {
	if p.arena == nil {
		return position.Result{}, fmt.Errorf("no arena attached")
	}

	err := p.arena.Start()
	if err != nil {
		return position.Result{}, err
	}
	defer p.arena.Stop()

	var result position.Result
	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		snapshot := p.arena.Snapshot()
		if !snapshot.HasPhase {
			if err := p.wait(ctx); err != nil {
				return result, err
			}
			continue
		}

		switch snapshot.Phase.ID {
		case director.Brief:
			if !p.arena.AdvancePhase() {
				return result, nil
			}

		case director.Play:
			p.act(snapshot)

			if !snapshot.Phase.Timed() {
				if !p.arena.AdvancePhase() {
					return result, nil
				}
				continue
			}
			if p.cfg.Manual != nil {
				if p.cfg.Manual.Tick() == 0 && !p.arena.AdvancePhase() {
					return result, nil
				}
				continue
			}
			if err := p.wait(ctx); err != nil {
				return result, err
			}

		case director.Review:
			err := p.arena.SetNotes(p.cfg.Notes)
			if err != nil && !errors.Is(err, position.ErrSessionScored) {
				return result, fmt.Errorf("setting notes: %w", err)
			}

			result, err = p.arena.FinishReview(ctx)
			if err != nil {
				return result, fmt.Errorf("finishing review: %w", err)
			}
			if p.arena.Snapshot().Phase.ID == director.Review {
				return result, nil
			}

		case director.Score:
			if snapshot.Result != nil {
				result = *snapshot.Result
			}
			return result, nil

		default:
			return result, fmt.Errorf("unknown phase %s", snapshot.Phase.ID.String())
		}
	}
}
