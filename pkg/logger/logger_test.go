package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("debug"))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("chatty"))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel), "unknown level should fall back to info")
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))
}

func TestReplaceNilInstallsNop(t *testing.T) {
	Replace(nil)
	require.NotNil(t, Logger())
	require.False(t, Logger().Core().Enabled(zap.ErrorLevel))
}

func TestWithModuleAndJobFields(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(nil) })

	WithModule("scheduler").Info("tick finished")
	WithJob("expiry_sweep").Info("job completed", zap.Int("listings_expired", 2))

	entries := recorded.All()
	require.Len(t, entries, 2)
	require.Equal(t, "scheduler", entries[0].ContextMap()["module"])

	fields := entries[1].ContextMap()
	require.Equal(t, "jobs", fields["module"])
	require.Equal(t, "expiry_sweep", fields["job"])
	require.EqualValues(t, 2, fields["listings_expired"])
}
