package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitAndSetLevel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "roast.log")
	require.NoError(t, Init(Config{Level: "warn", Encoding: "json", OutputPaths: []string{out}}))
	assert.Equal(t, zapcore.WarnLevel, Level())
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, SetLevel("debug"))
	assert.True(t, With().Core().Enabled(zapcore.DebugLevel))
	require.NoError(t, SetLevel("info"))

	assert.Error(t, SetLevel("loud"))
	assert.Error(t, Init(Config{Level: "loud"}))
	_ = Sync()
}
