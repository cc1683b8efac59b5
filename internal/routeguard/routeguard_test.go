package routeguard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		state domain.SessionState
		group RouteGroup
		want  Decision
	}{
		{
			name:  "logged out on protected route redirects to login",
			state: domain.StateUnauthenticated,
			group: GroupProtected,
			want:  Decision{Redirect: true, Target: RouteLogin},
		},
		{
			name:  "authenticated on protected route stays",
			state: domain.StateAuthenticated,
			group: GroupProtected,
			want:  Decision{},
		},
		{
			name:  "authenticated on login route redirects home",
			state: domain.StateAuthenticated,
			group: GroupPublicOnly,
			want:  Decision{Redirect: true, Target: RouteHome},
		},
		{
			name:  "logged out on login route stays",
			state: domain.StateUnauthenticated,
			group: GroupPublicOnly,
			want:  Decision{},
		},
		{
			name:  "neutral routes never redirect when authenticated",
			state: domain.StateAuthenticated,
			group: GroupNeutral,
			want:  Decision{},
		},
		{
			name:  "neutral routes never redirect when logged out",
			state: domain.StateUnauthenticated,
			group: GroupNeutral,
			want:  Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.state, tt.group))
		})
	}
}

func TestDecideIsIdempotentAcrossRedirects(t *testing.T) {
	// Following a redirect and re-deciding from the target's group must
	// settle, never bounce.
	decision := Decide(domain.StateUnauthenticated, GroupProtected)
	assert.True(t, decision.Redirect)
	assert.Equal(t, Decision{}, Decide(domain.StateUnauthenticated, GroupPublicOnly))

	decision = Decide(domain.StateAuthenticated, GroupPublicOnly)
	assert.True(t, decision.Redirect)
	assert.Equal(t, Decision{}, Decide(domain.StateAuthenticated, GroupProtected))
}
