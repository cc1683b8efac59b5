package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

func TestMonitorSweepsOutInactiveSession(t *testing.T) {
	manager, api, store, clock := newTestManager(t, Options{})

	loginAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	var timeMu sync.Mutex
	now := loginAt
	clock.EXPECT().Now().RunAndReturn(func() time.Time {
		timeMu.Lock()
		defer timeMu.Unlock()
		return now
	})

	api.EXPECT().Login(mockAnyContext(), "alice", "correct").Return(domain.TokenGrant{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    30 * 24 * time.Hour,
	}, nil)
	store.EXPECT().Write(mockAnyContext(), mock.Anything).Return(nil)

	_, err := manager.Login(context.Background(), "alice", "correct")
	require.NoError(t, err)

	api.EXPECT().Logout(mockAnyContext(), "refresh-1").Return(nil).Once()

	cleared := make(chan struct{})
	store.EXPECT().Clear(mockAnyContext()).RunAndReturn(func(context.Context) error {
		close(cleared)
		return nil
	}).Once()

	transitions, cancelSub := manager.Subscribe()
	defer cancelSub()
	drainStates(transitions)

	timeMu.Lock()
	now = loginAt.Add(16 * 24 * time.Hour)
	timeMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := NewMonitor(manager, 5*time.Millisecond, zerolog.Nop())
	go monitor.Run(ctx)

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never swept out the inactive session")
	}
	cancel()

	assert.False(t, manager.Authenticated())

	select {
	case state := <-transitions:
		assert.Equal(t, domain.StateUnauthenticated, state)
	case <-time.After(time.Second):
		t.Fatal("expected a logged-out transition")
	}
}

func TestMonitorLeavesActiveSessionAlone(t *testing.T) {
	manager, api, store, clock := newTestManager(t, Options{})

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clock.EXPECT().Now().Return(now)

	api.EXPECT().Login(mockAnyContext(), "alice", "correct").Return(domain.TokenGrant{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    time.Hour,
	}, nil)
	store.EXPECT().Write(mockAnyContext(), mock.Anything).Return(nil)

	_, err := manager.Login(context.Background(), "alice", "correct")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	monitor := NewMonitor(manager, 5*time.Millisecond, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.True(t, manager.Authenticated())
}

func drainStates(ch <-chan domain.SessionState) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
