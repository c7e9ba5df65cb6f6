// Package config loads and validates graphrun's runtime configuration,
// with optional hot reload of the subset of settings that are safe to
// change without restarting an in-flight run.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StoreConfig selects and parameterizes the checkpoint store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite mysql"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
}

// KVConfig selects and parameterizes the long-term key-value store.
type KVConfig struct {
	Driver     string `mapstructure:"driver" validate:"omitempty,oneof=memory redis"`
	Addr       string `mapstructure:"addr"`
	MilvusAddr string `mapstructure:"milvus_addr"`
	Collection string `mapstructure:"collection"`
	Dim        int    `mapstructure:"dim" validate:"omitempty,min=1"`
}

// SchedulerConfig carries the engine tuning knobs exposed as Options.
type SchedulerConfig struct {
	MaxSteps            int           `mapstructure:"max_steps" validate:"min=1"`
	MaxConcurrent       int           `mapstructure:"max_concurrent" validate:"min=1"`
	QueueDepth          int           `mapstructure:"queue_depth" validate:"min=1"`
	BackpressureTimeout time.Duration `mapstructure:"backpressure_timeout"`
	DefaultNodeTimeout  time.Duration `mapstructure:"default_node_timeout"`
	WallClockBudget     time.Duration `mapstructure:"wall_clock_budget"`
	Durability          string        `mapstructure:"durability" validate:"oneof=sync async exit"`
}

// Config is the top-level configuration for the graphrun CLI and any
// embedding process.
type Config struct {
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
	KV        KVConfig        `mapstructure:"kv"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	LogLevel  string          `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		Store: StoreConfig{Driver: "memory"},
		Scheduler: SchedulerConfig{
			MaxSteps:            1000,
			MaxConcurrent:       8,
			QueueDepth:          64,
			BackpressureTimeout: 30 * time.Second,
			Durability:          "sync",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path (if non-empty) layered over
// environment variables prefixed GRAPHRUN_ and the built-in defaults, then
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("graphrun")
	v.AutomaticEnv()

	d := defaults()
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("scheduler.max_steps", d.Scheduler.MaxSteps)
	v.SetDefault("scheduler.max_concurrent", d.Scheduler.MaxConcurrent)
	v.SetDefault("scheduler.queue_depth", d.Scheduler.QueueDepth)
	v.SetDefault("scheduler.backpressure_timeout", d.Scheduler.BackpressureTimeout)
	v.SetDefault("scheduler.durability", d.Scheduler.Durability)
	v.SetDefault("log_level", d.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
