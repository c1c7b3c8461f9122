// Package config loads scripthost settings from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds scripthost command configuration.
type Config struct {
	ScenePath    string        `env:"SCRIPTHOST_SCENE"`
	ScriptDir    string        `env:"SCRIPTHOST_SCRIPT_DIR" envDefault:"."`
	SlotDB       string        `env:"SCRIPTHOST_SLOT_DB"`
	TickInterval time.Duration `env:"SCRIPTHOST_TICK_INTERVAL" envDefault:"16ms"`
	FixedStep    time.Duration `env:"SCRIPTHOST_FIXED_STEP" envDefault:"20ms"`
	Duration     time.Duration `env:"SCRIPTHOST_DURATION"`
	Watch        bool          `env:"SCRIPTHOST_WATCH"`
	Window       bool          `env:"SCRIPTHOST_WINDOW"`
	Width        int           `env:"SCRIPTHOST_WIDTH" envDefault:"1280"`
	Height       int           `env:"SCRIPTHOST_HEIGHT" envDefault:"720"`
	LogLevel     string        `env:"SCRIPTHOST_LOG_LEVEL" envDefault:"info"`
	LogFormat    string        `env:"SCRIPTHOST_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Parse loads defaults from the environment, then applies flags from args.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ScenePath, "scene", cfg.ScenePath, "Scene YAML file; the built-in demo scene is used when empty")
	fs.StringVar(&cfg.ScriptDir, "scripts", cfg.ScriptDir, "Directory script sources are resolved against")
	fs.StringVar(&cfg.SlotDB, "slot-db", cfg.SlotDB, "SQLite database persisting script fields")
	fs.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Interval between controller ticks")
	fs.DurationVar(&cfg.FixedStep, "fixed-step", cfg.FixedStep, "FixedUpdate step; 0 disables FixedUpdate")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Stop after this long; 0 runs until interrupted")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Reload scripts when their files change")
	fs.BoolVar(&cfg.Window, "window", cfg.Window, "Open a window with the debug inspector")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Window width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Window height")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", c.TickInterval))
	}
	if c.FixedStep < 0 {
		errs = append(errs, fmt.Errorf("fixed step must not be negative, got %s", c.FixedStep))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}
	if c.Window && (c.Width <= 0 || c.Height <= 0) {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Width, c.Height))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
