package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerConfigLevels(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, NewLoggerConfig(false).Level.Level())
	assert.Equal(t, zapcore.DebugLevel, NewLoggerConfig(true).Level.Level())
	assert.True(t, NewLoggerConfig(false).DisableStacktrace)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("camdetect", true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	assert.False(t, NewNop().Desugar().Core().Enabled(zapcore.ErrorLevel))
}
