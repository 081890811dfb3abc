package logging

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{name: "empty defaults to info", input: "", expected: zapcore.InfoLevel},
		{name: "debug", input: "debug", expected: zapcore.DebugLevel},
		{name: "case insensitive", input: "DEBUG", expected: zapcore.DebugLevel},
		{name: "warning alias", input: "warning", expected: zapcore.WarnLevel},
		{name: "error", input: " error ", expected: zapcore.ErrorLevel},
		{name: "invalid", input: "loud", expected: zapcore.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	logger, err := New(WithLevel("debug"), WithDevelopment(true))
	require.NoError(t, err)
	assert.True(t, logger.V(1).Enabled())

	_, err = New(WithLevel("nope"))
	require.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	// Missing logger falls back to discard
	assert.Equal(t, logr.Discard(), FromContext(context.Background()))

	logger, err := New()
	require.NoError(t, err)
	ctx := IntoContext(context.Background(), logger)
	assert.Equal(t, logger, FromContext(ctx))
}
