package domain

import "time"

// SessionState is the coarse authentication state consumers react to.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticated   SessionState = "authenticated"
)

// Session holds the in-memory credential pair. The refresh token may outlive
// the access token, never the reverse.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	LastActiveAt time.Time
}

func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// AccessTokenValid reports whether the cached access token can still be
// handed to callers. A token within skew of its expiry counts as expired so
// callers never receive a credential about to lapse. A zero ExpiresAt means
// the server did not communicate an expiry; the token is trusted until a
// refresh replaces it.
func (s Session) AccessTokenValid(now time.Time, skew time.Duration) bool {
	if s.AccessToken == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}

	return now.Add(skew).Before(s.ExpiresAt)
}

func (s Session) State(now time.Time, skew time.Duration) SessionState {
	if s.AccessTokenValid(now, skew) {
		return StateAuthenticated
	}

	return StateUnauthenticated
}

// TokenGrant is what the identity service returns from login and refresh.
// RefreshToken carries whatever token the server minted; servers that rotate
// refresh tokens return the replacement here. Identity is only populated on
// login responses.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Identity     *UserIdentity
}
