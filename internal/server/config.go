package server

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"SourceAcademyGame/internal/dialogue"
)

// Config holds the server settings. Values come from defaults, then the
// environment, then command-line overrides.
type Config struct {
	Addr           string `env:"SAG_ADDR" envDefault:":8080"`
	CheckpointPath string `env:"SAG_CHECKPOINT" envDefault:"configs/checkpoint.yaml"`
	DBPath         string `env:"SAG_DB" envDefault:"data/game.db"`
	Policy         string `env:"SAG_POLICY" envDefault:"reject"`
	LogLevel       string `env:"SAG_LOG_LEVEL" envDefault:"info"`
	Dev            bool   `env:"SAG_DEV" envDefault:"false"`
	// Watch reloads the checkpoint file when it changes on disk.
	Watch bool `env:"SAG_WATCH" envDefault:"true"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ConfigOverrides represents optional command-line overrides. Nil fields
// keep the loaded value.
type ConfigOverrides struct {
	Addr           *string
	CheckpointPath *string
	DBPath         *string
	Policy         *string
	LogLevel       *string
	Dev            *bool
	Watch          *bool
}

// Apply returns base with every non-nil override set.
func (o ConfigOverrides) Apply(base Config) Config {
	if o.Addr != nil {
		base.Addr = *o.Addr
	}
	if o.CheckpointPath != nil {
		base.CheckpointPath = *o.CheckpointPath
	}
	if o.DBPath != nil {
		base.DBPath = *o.DBPath
	}
	if o.Policy != nil {
		base.Policy = *o.Policy
	}
	if o.LogLevel != nil {
		base.LogLevel = *o.LogLevel
	}
	if o.Dev != nil {
		base.Dev = *o.Dev
	}
	if o.Watch != nil {
		base.Watch = *o.Watch
	}
	return base
}

// Validate checks values that cannot be checked by the env parser.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr is required")
	}
	if c.CheckpointPath == "" {
		return fmt.Errorf("config: checkpoint path is required")
	}
	if _, err := dialogue.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SessionPolicy returns the parsed re-entry policy.
func (c Config) SessionPolicy() dialogue.Policy {
	p, _ := dialogue.ParsePolicy(c.Policy)
	return p
}
