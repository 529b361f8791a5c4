package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "PRODUCTION", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "state")

	l.Warn("storage unavailable", "key", "leetee:abc:global")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "storage unavailable", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "state", fields["component"])
	assert.Equal(t, "leetee:abc:global", fields["key"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := NewNop()
	assert.Same(t, l, OrNop(l))
}
