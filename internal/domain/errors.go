package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is user-correctable: wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetworkUnavailable covers transport failures and timeouts. Session
	// state is preserved; the caller may retry.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrServerError covers 5xx responses. Session state is preserved.
	ErrServerError = errors.New("identity server error")

	// ErrUnauthenticated means no usable credentials exist; the caller is
	// expected to route to login.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStorageError means credential persistence failed. Fatal to the
	// operation in progress, never silently ignored.
	ErrStorageError = errors.New("credential storage failed")
)

// ErrSessionExpired marks a previously valid session that aged out or was
// revoked server-side. It wraps ErrUnauthenticated so callers matching
// either sentinel route to login.
var ErrSessionExpired = fmt.Errorf("session expired: %w", ErrUnauthenticated)
