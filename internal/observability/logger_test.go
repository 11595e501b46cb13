package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		profile string
		wantErr bool
	}{
		{name: "structured info", level: "info", profile: "STRUCTURED"},
		{name: "console debug", level: "debug", profile: "console"},
		{name: "invalid level", level: "not-a-level", profile: "STRUCTURED", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.profile)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	err := InitCLILogger("warn", "STRUCTURED")
	require.NoError(t, err)
	assert.NotNil(t, CLILogger)
	assert.True(t, CLILogger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, CLILogger.Core().Enabled(zapcore.DebugLevel))
}

func TestInitCLILogger_InvalidLevel(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	err := InitCLILogger("bogus", "STRUCTURED")
	require.Error(t, err)
}
