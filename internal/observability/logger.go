// Package observability wraps zap the way the teacher's internal
// observability package does: a package-level CLILogger for command-line
// output, plus a constructor that configures it from the loaded config so
// every subcommand and daemon component logs through the same sink.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger used by internal/cmd. It defaults
// to a no-op logger until InitCLILogger runs, so packages can log safely
// before the CLI's root command has parsed flags.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger from a logging level and profile.
//
// level accepts zap's level names ("debug", "info", "warn", "error").
// profile selects the encoder: "STRUCTURED" for JSON (the default for
// daemon/production use), anything else for a human-readable console
// encoder suited to interactive CLI use.
func InitCLILogger(level, profile string) error {
	logger, err := NewLogger(level, profile)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewLogger builds a *zap.Logger from a level name and output profile,
// without touching the package-level CLILogger. Core packages that take a
// *zap.Logger via construction (never a global) should call this and pass
// the result down explicitly.
func NewLogger(level, profile string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("observability: invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if profile == "STRUCTURED" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("observability: build logger: %w", err)
	}
	return logger, nil
}
