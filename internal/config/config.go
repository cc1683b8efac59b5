package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	apiBaseURLKey        = "api.base_url"
	requestTimeoutKey    = "api.request_timeout"
	refreshSkewKey       = "session.refresh_skew"
	inactivityCeilingKey = "session.inactivity_ceiling"
	sweepIntervalKey     = "session.sweep_interval"

	envPrefix = "HALCYON"
)

// Config carries the tunables the CLI and session manager are wired with.
// Values come from ~/.halcyon/config.toml with HALCYON_* env overrides.
type Config struct {
	APIBaseURL        string
	RequestTimeout    time.Duration
	RefreshSkew       time.Duration
	InactivityCeiling time.Duration
	SweepInterval     time.Duration
}

// Load fills defaults and resolves overrides onto the given viper instance.
// The same instance is shared with the credential store so both resolve the
// same config file.
func Load(cfg *viper.Viper) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	cfg.SetDefault(apiBaseURLKey, "https://api.halcyonapp.com")
	cfg.SetDefault(requestTimeoutKey, 30*time.Second)
	cfg.SetDefault(refreshSkewKey, 30*time.Second)
	cfg.SetDefault(inactivityCeilingKey, 15*24*time.Hour)
	cfg.SetDefault(sweepIntervalKey, time.Hour)

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	loaded := Config{
		APIBaseURL:        cfg.GetString(apiBaseURLKey),
		RequestTimeout:    cfg.GetDuration(requestTimeoutKey),
		RefreshSkew:       cfg.GetDuration(refreshSkewKey),
		InactivityCeiling: cfg.GetDuration(inactivityCeilingKey),
		SweepInterval:     cfg.GetDuration(sweepIntervalKey),
	}

	if loaded.APIBaseURL == "" {
		return Config{}, errors.New("api base url is empty")
	}
	if loaded.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid request timeout %s", loaded.RequestTimeout)
	}
	if loaded.InactivityCeiling <= 0 {
		return Config{}, fmt.Errorf("invalid inactivity ceiling %s", loaded.InactivityCeiling)
	}

	return loaded, nil
}
