// Package routeguard decides navigation redirects from session state. It is
// deliberately pure: Decide never mutates session state, so re-evaluating it
// on every state change cannot feed back into the session manager.
package routeguard

import "github.com/halcyonapp/halcyon-session-cli/internal/domain"

// RouteGroup classifies where the user currently is.
type RouteGroup string

const (
	// GroupProtected routes require an authenticated session.
	GroupProtected RouteGroup = "protected"
	// GroupPublicOnly routes (login, signup) are off-limits once
	// authenticated.
	GroupPublicOnly RouteGroup = "public_only"
	// GroupNeutral routes are reachable in any state.
	GroupNeutral RouteGroup = "neutral"
)

// Route is an opaque navigation target.
type Route string

const (
	// RouteLogin is the public entry route.
	RouteLogin Route = "/login"
	// RouteHome is the protected entry route.
	RouteHome Route = "/home"
)

// Decision says whether to stay or redirect.
type Decision struct {
	Redirect bool
	Target   Route
}

func stay() Decision {
	return Decision{}
}

func redirectTo(target Route) Decision {
	return Decision{Redirect: true, Target: target}
}

// Decide maps session state and the current route group to a redirect
// decision. It is idempotent: deciding again from the redirect target's
// group yields stay.
func Decide(state domain.SessionState, group RouteGroup) Decision {
	switch group {
	case GroupProtected:
		if state != domain.StateAuthenticated {
			return redirectTo(RouteLogin)
		}
	case GroupPublicOnly:
		if state == domain.StateAuthenticated {
			return redirectTo(RouteHome)
		}
	}

	return stay()
}
