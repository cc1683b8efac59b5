package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

func TestRenderSignedOut(t *testing.T) {
	out, err := Render(Report{State: domain.StateUnauthenticated}, RenderOptions{Now: time.Now()})
	require.NoError(t, err)

	assert.Contains(t, out, "Halcyon Session")
	assert.Contains(t, out, "signed out")
	assert.Contains(t, out, "hs login")
	assert.NotContains(t, out, "last active")
}

func TestRenderAuthenticated(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	out, err := Render(Report{
		State: domain.StateAuthenticated,
		Identity: &domain.UserIdentity{
			ID:        "u-1",
			Username:  "alice",
			Email:     "alice@example.com",
			FirstName: "Alice",
			LastName:  "Reyes",
			Flags:     []string{"premium", "beta"},
		},
		ExpiresAt:    now.Add(10 * time.Minute),
		LastActiveAt: now.Add(-3 * time.Hour),
		InstallID:    "install-1",
	}, RenderOptions{Now: now})
	require.NoError(t, err)

	assert.Contains(t, out, "authenticated")
	assert.Contains(t, out, "Alice Reyes (alice)")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "premium, beta")
	assert.Contains(t, out, "valid for 10 minutes")
	assert.Contains(t, out, "3 hours ago")
	assert.Contains(t, out, "install-1")
}

func TestRenderExpiredTokenAwaitingRefresh(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	out, err := Render(Report{
		State:        domain.StateUnauthenticated,
		Identity:     &domain.UserIdentity{ID: "u-1", Username: "alice"},
		ExpiresAt:    now.Add(-time.Minute),
		LastActiveAt: now.Add(-30 * time.Second),
	}, RenderOptions{Now: now})
	require.NoError(t, err)

	assert.Contains(t, out, "signed out")
	assert.Contains(t, out, "expired, refresh pending")
	assert.Contains(t, out, "just now")
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		identity domain.UserIdentity
		want     string
	}{
		{name: "full name and username", identity: domain.UserIdentity{FirstName: "Alice", LastName: "Reyes", Username: "alice"}, want: "Alice Reyes (alice)"},
		{name: "username only", identity: domain.UserIdentity{Username: "alice"}, want: "alice"},
		{name: "name only", identity: domain.UserIdentity{FirstName: "Alice"}, want: "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.identity))
		})
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30 seconds"},
		{90 * time.Second, "1 minute"},
		{5 * time.Minute, "5 minutes"},
		{time.Hour, "1 hour"},
		{26 * time.Hour, "26 hours"},
		{72 * time.Hour, "3 days"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanDuration(tt.in), "duration %s", tt.in)
	}
}
