package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/halcyonapp/halcyon-session-cli/internal/adapters/api"
	statusadapter "github.com/halcyonapp/halcyon-session-cli/internal/adapters/render/status"
	tomlstore "github.com/halcyonapp/halcyon-session-cli/internal/adapters/store/toml"
	"github.com/halcyonapp/halcyon-session-cli/internal/application"
	"github.com/halcyonapp/halcyon-session-cli/internal/config"
	"github.com/halcyonapp/halcyon-session-cli/internal/ports"
)

type app struct {
	cfg            config.Config
	manager        *application.SessionManager
	statusRenderer func(statusadapter.Report, statusadapter.RenderOptions) (string, error)
	logger         zerolog.Logger
	now            func() time.Time
}

func wireApp() (*app, error) {
	logger := newLogger()

	cfgViper := viper.New()
	cfg, err := config.Load(cfgViper)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := tomlstore.NewStore(cfgViper, logger)
	if err != nil {
		return nil, fmt.Errorf("wire credential store: %w", err)
	}

	installID := storedInstallID(store)

	client := &api.Client{
		BaseURL:        cfg.APIBaseURL,
		HTTPClient:     http.DefaultClient,
		RequestTimeout: cfg.RequestTimeout,
	}

	manager := application.NewSessionManager(client, store, ports.SystemClock{}, logger, application.Options{
		RefreshSkew:       cfg.RefreshSkew,
		InactivityCeiling: cfg.InactivityCeiling,
		InstallID:         installID,
	})

	// The identifier rotates on logout; the header has to follow it.
	client.DeviceID = manager.InstallID

	return &app{
		cfg:            cfg,
		manager:        manager,
		statusRenderer: statusadapter.Render,
		logger:         logger,
		now:            time.Now,
	}, nil
}

func (a *app) newMonitor() *application.Monitor {
	return application.NewMonitor(a.manager, a.cfg.SweepInterval, a.logger)
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if os.Getenv("HALCYON_DEBUG") != "" {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)
}

// storedInstallID reuses the install identifier from a previous session so
// the device header stays stable across restarts. A fresh install gets a
// new one.
func storedInstallID(store ports.CredentialStore) string {
	record, err := store.Read(context.Background())
	if err == nil && record != nil && record.InstallID != "" {
		return record.InstallID
	}

	return uuid.NewString()
}
