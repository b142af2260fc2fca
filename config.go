package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/dnldd/dojo/shared"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	// defaultCandleCount is the number of one minute candles generated for synthetic sessions.
	defaultCandleCount = 600
	// defaultProfile is the profile credited when none is configured.
	defaultProfile = "player"
)

// Config is the configuration struct for the service.
type Config struct {
	// Seed is the price regime seed of synthetic sessions, "REGIME:MODIFIER".
	Seed string
	// DrillFilepath is the filepath to a json drill definition. The replay drill is played when
	// empty.
	DrillFilepath string
	// HistoricDataFilepath is the filepath to recorded market data. Candles are generated when
	// empty.
	HistoricDataFilepath string
	// Timeframe is the presentation timeframe override of the drill.
	Timeframe string
	// CandleCount is the number of one minute candles generated for synthetic sessions.
	CandleCount int
	// DBEndpoint is the rqlite endpoint. Sessions are journaled in memory when empty.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string
	// Profile is the profile credited with drill rewards.
	Profile string
	// Reward is the drill reward override.
	Reward int
	// TipCooldownSec is the minimum number of seconds between two coaching tips.
	TipCooldownSec int
	// LogLevel is the minimum log level.
	LogLevel string
	// LogFilepath is the filepath of the rotated log file. File logging is disabled when empty.
	LogFilepath string
	// FastForward plays the drill on a manual clock instead of wall time.
	FastForward bool

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Timeframe != "" {
		if _, err := shared.ParseTimeframe(cfg.Timeframe); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
			errs = errors.Join(errs, fmt.Errorf("unknown log level provided: %q", cfg.LogLevel))
		}
	}
	if cfg.CandleCount < 0 {
		errs = errors.Join(errs, fmt.Errorf("candle count cannot be negative"))
	}
	if cfg.Reward < 0 {
		errs = errors.Join(errs, fmt.Errorf("reward cannot be negative"))
	}
	if cfg.TipCooldownSec < 0 {
		errs = errors.Join(errs, fmt.Errorf("tip cooldown cannot be negative"))
	}
	if cfg.DBUser != "" && cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database user provided without a database endpoint"))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"seed", &cfg.Seed, "the synthetic price regime seed"},
		{"drillfilepath", &cfg.DrillFilepath, "the drill definition filepath"},
		{"historicdatafilepath", &cfg.HistoricDataFilepath, "the historic market data filepath"},
		{"timeframe", &cfg.Timeframe, "the presentation timeframe"},
		{"candlecount", &cfg.CandleCount, "the number of generated one minute candles"},
		{"dbendpoint", &cfg.DBEndpoint, "the rqlite endpoint"},
		{"dbuser", &cfg.DBUser, "the database user"},
		{"dbpass", &cfg.DBPass, "the database user pass"},
		{"profile", &cfg.Profile, "the profile credited with drill rewards"},
		{"reward", &cfg.Reward, "the drill reward override"},
		{"tipcooldownsec", &cfg.TipCooldownSec, "the seconds between coaching tips"},
		{"loglevel", &cfg.LogLevel, "the log level"},
		{"logfilepath", &cfg.LogFilepath, "the log file filepath"},
		{"fastforward", &cfg.FastForward, "the fast forward flag"},
	}

	// Register command line arguments using loaded environment variables as defaults.
	for _, f := range flags {
		err = cfg.registerFlag(f.name, f.value, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	if cfg.CandleCount == 0 {
		cfg.CandleCount = defaultCandleCount
	}
	if cfg.Profile == "" {
		cfg.Profile = defaultProfile
	}

	return cfg.Validate()
}
