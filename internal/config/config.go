// Package config loads process configuration through viper, layering
// defaults, an optional config file, environment variables, and runtime
// overrides, exactly the precedence order the teacher's CLI assumes.
package config

import "time"

// Config is the fully resolved process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Store     StoreConfig     `mapstructure:"store"`
	Workers   int             `mapstructure:"workers"`
}

// ServerConfig configures the daemon's HTTP listener (health + metrics).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures internal/observability's logger construction.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig configures the daemon's /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig configures the daemon's /healthz endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig configures development-only diagnostics.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// SchedulerConfig parameterises the pacing loop shared by every Scheduler
// instance the daemon starts, absent a Series-specific AllocatorConfig
// override.
type SchedulerConfig struct {
	StepSize   int           `mapstructure:"step_size"`
	StepPeriod time.Duration `mapstructure:"step_period"`
	RateLimit  float64       `mapstructure:"rate_limit"`
}

// StoreConfig configures the Metadata Store / Data Store backend.
type StoreConfig struct {
	// DSN is the sqlitestore.Config.Path value: a file path, or
	// ":memory:" for an ephemeral store.
	DSN string `mapstructure:"dsn"`
}
