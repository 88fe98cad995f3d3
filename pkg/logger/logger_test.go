package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	l, err := New("")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New("chatty")
	assert.ErrorContains(t, err, "log level")

	dev, err := NewDevelopment("warn")
	require.NoError(t, err)
	assert.False(t, dev.Core().Enabled(zapcore.InfoLevel))
}

func TestMustAndNamed(t *testing.T) {
	assert.Panics(t, func() { Must(New("chatty")) })
	assert.NotNil(t, Named(nil, "http"))

	base := Must(New("info"))
	assert.Equal(t, "http", Named(base, "http").Name())
}
