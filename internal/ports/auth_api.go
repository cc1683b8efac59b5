package ports

import (
	"context"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

// AuthAPI is the remote identity service boundary. Implementations map
// failures onto the domain sentinels: Login surfaces
// domain.ErrInvalidCredentials on rejected credentials, Refresh surfaces
// domain.ErrSessionExpired when the refresh token is invalid or revoked, and
// transport-level failures surface domain.ErrNetworkUnavailable or
// domain.ErrServerError on every operation.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (domain.TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenGrant, error)
	Logout(ctx context.Context, refreshToken string) error
	FetchProfile(ctx context.Context, accessToken string) (domain.UserIdentity, error)
}
