package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "8083", cfg.Port)
	require.Equal(t, "local", cfg.StorageDriver)
	require.True(t, cfg.FeatureReports)
	require.True(t, cfg.FeatureMuteSettings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("FEATURE_REPORTS", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	require.Equal(t, "9001", cfg.Port)
	require.False(t, cfg.FeatureReports)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadDebugRoutes(t *testing.T) {
	cfg := Load()
	require.False(t, cfg.DebugRoutes)

	t.Setenv("DEBUG_ROUTES", "true")
	require.True(t, Load().DebugRoutes)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	require.Equal(t, 0, cfg.RedisDB)
}
