package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-source-portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	c, err := config.FromEnv()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.True(t, c.IsDev())
	require.Equal(t, "/", c.GetBasePath())
	require.Equal(t, 30*time.Second, c.GetRefreshInterval())
	require.False(t, c.UseRedis())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "prod")
	t.Setenv("BASE_PATH", "portal/")
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("AGREEMENTS_REFRESH_INTERVAL", "10s")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	c, err := config.FromEnv()
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.False(t, c.IsDev())
	require.Equal(t, "/portal", c.GetBasePath())
	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, 10*time.Second, c.GetRefreshInterval())
	require.True(t, c.UseRedis())
}

func TestFromEnv_RefreshIntervalFloor(t *testing.T) {
	t.Setenv("AGREEMENTS_REFRESH_INTERVAL", "10ms")

	c, err := config.FromEnv()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, c.GetRefreshInterval())
}

func TestFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("API_TIMEOUT", "not-a-duration")

	_, err := config.FromEnv()
	require.Error(t, err)
}
