package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newTestLogger(t *testing.T, level zapcore.Level) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zap.NewAtomicLevelAt(level),
	)

	return FromZap(zap.New(core)), buf
}

func TestLoggerLevels(t *testing.T) {
	testLogger, buf := newTestLogger(t, zapcore.DebugLevel)

	testLogger.Debug("debug message")
	testLogger.Info("info message")
	testLogger.Warn("warning message")
	testLogger.Error("error message")

	output := buf.String()
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warning message")
	assert.Contains(t, output, "error message")
}

func TestLoggerRespectsLevel(t *testing.T) {
	testLogger, buf := newTestLogger(t, zapcore.WarnLevel)

	testLogger.Debug("hidden debug")
	testLogger.Info("hidden info", Fields{"k": "v"})
	testLogger.Warn("visible warn")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible warn")
}

func TestLoggerWithFields(t *testing.T) {
	testLogger, buf := newTestLogger(t, zapcore.DebugLevel)

	testLogger.Info("tool invoked", Fields{
		"tool":     "pb_feature_list",
		"duration": 1500 * time.Millisecond,
		"error":    errors.New("boom"),
	})

	output := buf.String()
	assert.Contains(t, output, `"tool":"pb_feature_list"`)
	assert.Contains(t, output, `"duration":1500`)
	assert.Contains(t, output, `"error":"boom"`)
}

func TestWithAndNamed(t *testing.T) {
	testLogger, buf := newTestLogger(t, zapcore.DebugLevel)

	child := testLogger.Named("cache").With(Fields{"component": "lru"})
	child.Info("evicted")

	output := buf.String()
	assert.Contains(t, output, `"logger":"cache"`)
	assert.Contains(t, output, `"component":"lru"`)
}

func TestWithEmptyFields(t *testing.T) {
	testLogger, _ := newTestLogger(t, zapcore.InfoLevel)
	assert.Same(t, testLogger, testLogger.With(Fields{}))
}

func TestFormattedMessages(t *testing.T) {
	testLogger, buf := newTestLogger(t, zapcore.DebugLevel)

	testLogger.Infof("retrying %s in %d ms", "pb_feature_get", 200)
	testLogger.Errorf("giving up after %d attempts", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "retrying pb_feature_get in 200 ms")
	assert.Contains(t, lines[1], "giving up after 3 attempts")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: DebugLevel, OutputPaths: []string{"stderr"}, InitialFields: Fields{"service": "test"}})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = New(Config{})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestDefaultConfigWritesToStderr(t *testing.T) {
	assert.Equal(t, []string{"stderr"}, DefaultConfig().OutputPaths)
	assert.Equal(t, DebugLevel, DevelopmentConfig().Level)
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	nop := NewNop()
	SetDefault(nop)
	assert.Same(t, nop, Default())
	assert.Same(t, nop, OrDefault(nil))

	other := NewNop()
	assert.Same(t, other, OrDefault(other))

	SetDefault(nil)
	assert.Same(t, nop, Default())
}
