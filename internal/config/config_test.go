package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://api.halcyonapp.com", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.RefreshSkew)
	assert.Equal(t, 15*24*time.Hour, cfg.InactivityCeiling)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HALCYON_API_BASE_URL", "http://localhost:8080")
	t.Setenv("HALCYON_SESSION_REFRESH_SKEW", "1m")
	t.Setenv("HALCYON_SESSION_INACTIVITY_CEILING", "72h")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, time.Minute, cfg.RefreshSkew)
	assert.Equal(t, 72*time.Hour, cfg.InactivityCeiling)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("empty base url", func(t *testing.T) {
		cfg := viper.New()
		cfg.Set("api.base_url", "")

		_, err := Load(cfg)
		assert.Error(t, err)
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		cfg := viper.New()
		cfg.Set("api.request_timeout", "0s")

		_, err := Load(cfg)
		assert.Error(t, err)
	})

	t.Run("non-positive ceiling", func(t *testing.T) {
		cfg := viper.New()
		cfg.Set("session.inactivity_ceiling", "-1h")

		_, err := Load(cfg)
		assert.Error(t, err)
	})
}
