package application

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const DefaultSweepInterval = time.Hour

// Monitor periodically applies the auto-logout policy. It only calls the
// manager's public entry point, preserving the single-writer discipline of
// session state.
type Monitor struct {
	manager  *SessionManager
	interval time.Duration
	logger   zerolog.Logger
}

func NewMonitor(manager *SessionManager, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Monitor{manager: manager, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := m.manager.ExpireIfInactive(ctx)
			if err != nil {
				m.logger.Error().Err(err).Msg("inactivity sweep failed")
				continue
			}
			if expired {
				m.logger.Info().Msg("session logged out after inactivity")
			}
		}
	}
}
