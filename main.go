package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dnldd/dojo/database"
	"github.com/dnldd/dojo/director"
	"github.com/dnldd/dojo/market"
	"github.com/dnldd/dojo/service"
	"github.com/dnldd/dojo/shared"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// diagnosticsInterval is the interval arena diagnostics are logged at on wall time.
	diagnosticsInterval = time.Minute
	// autopilotNotes are the reflection notes submitted by the autopilot.
	autopilotNotes = "autopilot session"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

// loadDrill returns the configured drill with the config overrides applied.
func loadDrill(cfg *Config) (*director.Drill, error) {
	drill := director.ReplayDrill()
	if cfg.DrillFilepath != "" {
		data, err := os.ReadFile(cfg.DrillFilepath)
		if err != nil {
			return nil, fmt.Errorf("reading drill file: %w", err)
		}

		drill, err = director.ParseDrill(data)
		if err != nil {
			return nil, fmt.Errorf("parsing drill file: %w", err)
		}
	}

	if cfg.Seed != "" {
		drill.Seed = cfg.Seed
	}
	if cfg.Timeframe != "" {
		timeframe, err := shared.ParseTimeframe(cfg.Timeframe)
		if err != nil {
			return nil, err
		}
		drill.Timeframe = timeframe
	}
	if cfg.Reward > 0 {
		drill.Reward = int64(cfg.Reward)
	}

	err := drill.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating drill: %w", err)
	}

	return drill, nil
}

// newSource returns the historic source when a data file is configured and the synthetic source
// otherwise.
func newSource(cfg *Config, logger *zerolog.Logger) (shared.CandleSource, error) {
	if cfg.HistoricDataFilepath != "" {
		sourceLogger := logger.With().Str("component", "historicsource").Logger()
		return market.NewHistoricSource(&market.HistoricSourceConfig{
			FilePath: cfg.HistoricDataFilepath,
			Logger:   &sourceLogger,
		})
	}

	sourceLogger := logger.With().Str("component", "syntheticsource").Logger()
	return market.NewSyntheticSource(&market.SyntheticSourceConfig{
		Generator: market.NewDefaultGenerator(),
		Length:    cfg.CandleCount,
		Logger:    &sourceLogger,
	})
}

// store combines the journal and reward persistence of a session.
type store interface {
	shared.JournalStorer
	shared.RewardCrediter
}

// newStore returns the rqlite database when an endpoint is configured and the in-memory store
// otherwise.
func newStore(ctx context.Context, cfg *Config, logger *zerolog.Logger) (store, error) {
	dbLogger := logger.With().Str("component", "database").Logger()
	if cfg.DBEndpoint == "" {
		return database.NewMemoryStore(&dbLogger), nil
	}

	return database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DBEndpoint,
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Logger:   &dbLogger,
	})
}

// play runs a single drill session with the provided config.
func play(ctx context.Context, cfg *Config, logger *zerolog.Logger) error {
	drill, err := loadDrill(cfg)
	if err != nil {
		return err
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating candle source: %w", err)
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	pilotLogger := logger.With().Str("component", "autopilot").Logger()
	pilotCfg := &autopilotConfig{Notes: autopilotNotes, Logger: &pilotLogger}

	diagLogger := logger.With().Str("component", "diagnostics").Logger()
	diagnostics := service.NewSpewDiagnostics(&diagLogger)

	var scheduler director.Scheduler
	if cfg.FastForward {
		pilotCfg.Manual = director.NewManualScheduler()
		scheduler = pilotCfg.Manual
	} else {
		_, loc, err := shared.NewYorkTime()
		if err != nil {
			return err
		}
		gocron := director.NewGocronScheduler(loc)
		defer gocron.Stop()
		scheduler = gocron

		cancelDiagnostics, err := gocron.Every(diagnosticsInterval, diagnostics.Log)
		if err != nil {
			return fmt.Errorf("scheduling diagnostics: %w", err)
		}
		defer cancelDiagnostics()
	}

	pilot, err := newAutopilot(pilotCfg)
	if err != nil {
		return err
	}

	arena, err := service.NewArena(&service.ArenaConfig{
		Drill:       drill,
		Source:      source,
		Journal:     st,
		Rewards:     st,
		Profile:     cfg.Profile,
		Scheduler:   scheduler,
		TipCooldown: time.Duration(cfg.TipCooldownSec) * time.Second,
		Diagnostics: diagnostics,
		OnUpdate:    pilot.notify,
	})
	if err != nil {
		return fmt.Errorf("creating arena: %w", err)
	}
	pilot.attach(arena)

	err = arena.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading arena: %w", err)
	}

	result, err := pilot.run(ctx)
	if err != nil {
		diagnostics.Log()
		return fmt.Errorf("playing %s: %w", drill.ID, err)
	}

	logger.Info().Msgf("%s finished: %d trades, pnl %.2f, score %d", drill.ID, len(result.Trades),
		result.PNL, result.Score)

	if memory, ok := st.(*database.MemoryStore); ok {
		logger.Info().Msgf("%s balance: %d", cfg.Profile, memory.Balance(cfg.Profile))
	}

	return nil
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Err(err).Msg("loading config")
		return
	}

	logger, closer := setupLogging(&cfg, os.Stdout)
	if closer != nil {
		defer closer.Close()
	}
	log.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleTermination(ctx, cancel)

	err = play(ctx, &cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("running drill")
	}
}
