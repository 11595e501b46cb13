package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const envPrefix = "KRAKEN"

var (
	configMu  sync.Mutex
	appConfig *Config
)

// envSpec documents one environment variable this package binds.
type envSpec struct {
	Name string // e.g. "KRAKEN_PORT"
	Path string // viper key, e.g. "server.port"
}

// Load resolves the process Config: defaults, then an optional config
// file discovered from the project root, then KRAKEN_*-prefixed
// environment variables, then runtime overrides (highest precedence).
//
// The returned Config is cached; subsequent calls to GetConfig return the
// most recently Loaded instance.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range envSpecs() {
		_ = v.BindEnv(spec.Path, spec.Name)
	}

	root, err := findProjectRoot()
	if err == nil {
		v.SetConfigName("kraken")
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
		if readErr := v.ReadInConfig(); readErr != nil {
			if _, notFound := readErr.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("config: read config file: %w", readErr)
			}
		}
	}

	for _, o := range overrides {
		if err := v.MergeConfigMap(o); err != nil {
			return nil, fmt.Errorf("config: merge runtime overrides: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently Loaded Config, or nil if Load has
// never run.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)

	v.SetDefault("scheduler.step_size", 100)
	v.SetDefault("scheduler.step_period", "1m")
	v.SetDefault("scheduler.rate_limit", 0.0)

	v.SetDefault("store.dsn", "kraken.db")

	v.SetDefault("workers", 4)
}

// envSpecs returns the fixed set of environment variables this package
// binds, keyed by the viper path each one overrides.
func envSpecs() []envSpec {
	return []envSpec{
		{Name: envPrefix + "_HOST", Path: "server.host"},
		{Name: envPrefix + "_PORT", Path: "server.port"},
		{Name: envPrefix + "_READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: envPrefix + "_WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: envPrefix + "_IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: envPrefix + "_SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: envPrefix + "_LOG_LEVEL", Path: "logging.level"},
		{Name: envPrefix + "_LOG_PROFILE", Path: "logging.profile"},
		{Name: envPrefix + "_METRICS_ENABLED", Path: "metrics.enabled"},
		{Name: envPrefix + "_METRICS_PORT", Path: "metrics.port"},
		{Name: envPrefix + "_HEALTH_ENABLED", Path: "health.enabled"},
		{Name: envPrefix + "_STORE_DSN", Path: "store.dsn"},
		{Name: envPrefix + "_WORKERS", Path: "workers"},
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
// KRAKEN_WORKSPACE_ROOT, when set to an existing absolute directory that
// holds a go.mod, short-circuits the walk — the same
// CI-container escape hatch the teacher's config loader documents for
// checkouts made outside $HOME.
func findProjectRoot() (string, error) {
	if hint := os.Getenv("KRAKEN_WORKSPACE_ROOT"); hint != "" && filepath.IsAbs(hint) {
		if info, err := os.Stat(hint); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(hint, "go.mod")); err == nil {
				return hint, nil
			}
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: getwd: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: no go.mod found above %s", dir)
		}
		dir = parent
	}
}
