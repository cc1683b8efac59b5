package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
	"github.com/halcyonapp/halcyon-session-cli/internal/ports"
)

const (
	DefaultRefreshSkew       = 30 * time.Second
	DefaultInactivityCeiling = 15 * 24 * time.Hour

	refreshFlightKey = "refresh"
)

// Options tune session policy. Zero values fall back to the defaults above.
type Options struct {
	// RefreshSkew treats tokens this close to expiry as already expired so
	// callers never receive a credential about to lapse mid-request.
	RefreshSkew time.Duration

	// InactivityCeiling forces a full logout when the last successful token
	// application is older than this, regardless of token validity.
	InactivityCeiling time.Duration

	// InstallID overrides the generated per-install identifier. A stored
	// record's identifier takes precedence on Initialize.
	InstallID string

	// ValidateOnInit schedules a background profile fetch after an
	// optimistic rehydration, demoting the session if the server rejects
	// the restored credentials.
	ValidateOnInit bool
}

// SessionManager is the single source of truth for whether this client is
// authenticated and with what credentials. All mutation of the in-memory
// session and the durable credential record goes through it.
type SessionManager struct {
	api    ports.AuthAPI
	store  ports.CredentialStore
	clock  ports.Clock
	logger zerolog.Logger

	refreshSkew       time.Duration
	inactivityCeiling time.Duration
	validateOnInit    bool

	mu        sync.RWMutex
	session   domain.Session
	identity  *domain.UserIdentity
	installID string
	lastState domain.SessionState

	flight singleflight.Group

	subMu sync.Mutex
	subs  map[int]chan domain.SessionState
	subID int
}

func NewSessionManager(api ports.AuthAPI, store ports.CredentialStore, clock ports.Clock, logger zerolog.Logger, opts Options) *SessionManager {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if opts.RefreshSkew <= 0 {
		opts.RefreshSkew = DefaultRefreshSkew
	}
	if opts.InactivityCeiling <= 0 {
		opts.InactivityCeiling = DefaultInactivityCeiling
	}
	if opts.InstallID == "" {
		opts.InstallID = uuid.NewString()
	}

	return &SessionManager{
		api:               api,
		store:             store,
		clock:             clock,
		logger:            logger,
		refreshSkew:       opts.RefreshSkew,
		inactivityCeiling: opts.InactivityCeiling,
		validateOnInit:    opts.ValidateOnInit,
		installID:         opts.InstallID,
		lastState:         domain.StateUnauthenticated,
		subs:              map[int]chan domain.SessionState{},
	}
}

// Initialize rehydrates the session from the credential store once at
// startup. It never fails: every unusable path resolves to a logged-out
// state rather than an error.
func (m *SessionManager) Initialize(ctx context.Context) domain.SessionState {
	record, err := m.store.Read(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("session rehydration failed, starting logged out")
		return domain.StateUnauthenticated
	}
	if record == nil {
		return domain.StateUnauthenticated
	}

	if record.InstallID != "" {
		m.mu.Lock()
		m.installID = record.InstallID
		m.mu.Unlock()
	}

	now := m.clock.Now()
	if m.inactivityExceeded(record.Session.LastActiveAt, now) {
		m.logger.Info().Msg("stored session exceeded inactivity ceiling, forcing logout")
		if err := m.revokeAndClear(ctx, record.Session.RefreshToken); err != nil {
			m.logger.Error().Err(err).Msg("clear inactive session record")
		}
		return domain.StateUnauthenticated
	}

	if record.Session.AccessTokenValid(now, m.refreshSkew) {
		session := record.Session
		session.LastActiveAt = now
		m.setSession(session, record.Identity)
		if err := m.persist(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("stamp rehydrated session activity")
		}
		if m.validateOnInit {
			go m.ValidateSession(context.WithoutCancel(ctx))
		}
		return domain.StateAuthenticated
	}

	if record.Session.RefreshToken != "" {
		m.setSession(record.Session, record.Identity)
		if _, err := m.refresh(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("startup refresh failed, starting logged out")
			return domain.StateUnauthenticated
		}
		return domain.StateAuthenticated
	}

	return domain.StateUnauthenticated
}

// Login exchanges credentials for a token pair. Success is only reported
// once the credential record is durably persisted; a storage failure rolls
// the attempt back and the prior session, if any, stays untouched.
func (m *SessionManager) Login(ctx context.Context, username, password string) (domain.UserIdentity, error) {
	grant, err := m.api.Login(ctx, username, password)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	session := m.sessionFromGrant(grant, domain.Session{})

	m.mu.RLock()
	installID := m.installID
	m.mu.RUnlock()

	record := domain.CredentialRecord{
		InstallID: installID,
		Session:   session,
		Identity:  grant.Identity,
	}
	if err := m.store.Write(ctx, record); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("persist login: %w", err)
	}

	m.setSession(session, grant.Identity)

	if grant.Identity != nil {
		return *grant.Identity, nil
	}
	return domain.UserIdentity{}, nil
}

// Logout revokes the refresh token best-effort and unconditionally clears
// local state. A remote failure is logged, never propagated: a client-side
// logout must always be effective from the user's perspective. Calling it
// on an already-cleared session is a no-op.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.RLock()
	refreshToken := m.session.RefreshToken
	m.mu.RUnlock()

	return m.revokeAndClear(ctx, refreshToken)
}

// revokeAndClear is the shared logout choreography: best-effort remote
// revoke, then the unconditional local clear. Forced logouts (inactivity,
// explicit logout) both go through here so a policy-expired refresh token
// does not stay live server-side.
func (m *SessionManager) revokeAndClear(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		if err := m.api.Logout(ctx, refreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("remote logout failed, clearing local session anyway")
		}
	}

	return m.clearLocalSession(ctx)
}

// AccessToken returns a token valid for authenticated requests. The cached
// token is returned without I/O when still valid; otherwise the single
// in-flight refresh is awaited, so concurrent callers share one network
// call and one outcome. With no refresh token it returns
// domain.ErrUnauthenticated and the caller is expected to route to login.
func (m *SessionManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	now := m.clock.Now()
	if m.inactivityExceeded(session.LastActiveAt, now) {
		m.logger.Info().Msg("session exceeded inactivity ceiling, forcing logout")
		if err := m.revokeAndClear(ctx, session.RefreshToken); err != nil {
			m.logger.Error().Err(err).Msg("clear inactive session record")
		}
		return "", domain.ErrSessionExpired
	}

	if session.AccessTokenValid(now, m.refreshSkew) {
		return session.AccessToken, nil
	}

	if session.RefreshToken == "" {
		return "", domain.ErrUnauthenticated
	}

	return m.refresh(ctx)
}

// RefreshProfile fetches the user profile and updates the cache. A fetch
// failure leaves the previously cached identity intact and does not
// invalidate the session.
func (m *SessionManager) RefreshProfile(ctx context.Context) (domain.UserIdentity, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	identity, err := m.api.FetchProfile(ctx, token)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	m.mu.Lock()
	m.identity = &identity
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("persist profile: %w", err)
	}

	return identity, nil
}

// ExpireIfInactive applies the auto-logout policy once. It reports whether
// the session was cleared. The periodic monitor and app-lifecycle hooks
// call this instead of mutating state themselves.
func (m *SessionManager) ExpireIfInactive(ctx context.Context) (bool, error) {
	m.mu.RLock()
	lastActiveAt := m.session.LastActiveAt
	refreshToken := m.session.RefreshToken
	empty := m.session.Empty()
	m.mu.RUnlock()

	if empty || !m.inactivityExceeded(lastActiveAt, m.clock.Now()) {
		return false, nil
	}

	m.logger.Info().Msg("session exceeded inactivity ceiling, forcing logout")
	if err := m.revokeAndClear(ctx, refreshToken); err != nil {
		return true, err
	}
	return true, nil
}

// ValidateSession confirms restored credentials against the server. A hard
// auth rejection demotes the session; transient failures change nothing.
func (m *SessionManager) ValidateSession(ctx context.Context) {
	_, err := m.RefreshProfile(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthenticated):
		// The refresh path clears state on a revoked token; a direct 401
		// from the profile endpoint still needs the local clear.
		if clearErr := m.clearLocalSession(ctx); clearErr != nil {
			m.logger.Error().Err(clearErr).Msg("clear rejected session record")
		}
		m.logger.Info().Msg("restored session rejected by server, cleared")
	default:
		m.logger.Debug().Err(err).Msg("session validation inconclusive, keeping session")
	}
}

// State reports the coarse authentication state.
func (m *SessionManager) State() domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session.State(m.clock.Now(), m.refreshSkew)
}

func (m *SessionManager) Authenticated() bool {
	return m.State() == domain.StateAuthenticated
}

// Identity returns the cached profile, or nil when none is cached.
func (m *SessionManager) Identity() *domain.UserIdentity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil
	}
	identity := *m.identity
	return &identity
}

// Session returns a snapshot of the current credential pair.
func (m *SessionManager) Session() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session
}

func (m *SessionManager) InstallID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.installID
}

// Subscribe returns a channel receiving coarse state transitions and a
// cancel function. Slow receivers drop notifications rather than blocking
// session operations.
func (m *SessionManager) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	m.subMu.Lock()
	id := m.subID
	m.subID++
	m.subs[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}

	return ch, cancel
}

// refresh funnels every caller through one in-flight exchange: the first
// caller performs the network call, the rest await its outcome.
func (m *SessionManager) refresh(ctx context.Context) (string, error) {
	token, err, _ := m.flight.Do(refreshFlightKey, func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (m *SessionManager) doRefresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.session
	m.mu.RUnlock()

	// A waiter queued behind a completed refresh re-enters here; return the
	// fresh token instead of spending the rotated refresh token again.
	if current.AccessTokenValid(m.clock.Now(), m.refreshSkew) {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		return "", domain.ErrUnauthenticated
	}

	grant, err := m.api.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			m.logger.Info().Msg("refresh token rejected, clearing session")
			if clearErr := m.clearLocalSession(ctx); clearErr != nil {
				m.logger.Error().Err(clearErr).Msg("clear rejected session record")
			}
			return "", err
		}

		m.logger.Warn().Err(err).Msg("transient refresh failure, keeping stale tokens")
		return "", err
	}

	session := m.sessionFromGrant(grant, current)
	m.setSession(session, nil)

	if err := m.persist(ctx); err != nil {
		// The rotated pair stays in memory so the new refresh token is not
		// lost, but the failed write is surfaced, never swallowed.
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	return session.AccessToken, nil
}

// sessionFromGrant applies a token grant on top of the previous session.
// Whatever refresh token the server returned is stored; servers that do not
// rotate may omit it, in which case the previous one is kept.
func (m *SessionManager) sessionFromGrant(grant domain.TokenGrant, prev domain.Session) domain.Session {
	now := m.clock.Now()
	session := domain.Session{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		LastActiveAt: now,
	}
	if session.RefreshToken == "" {
		session.RefreshToken = prev.RefreshToken
	}

	switch {
	case grant.ExpiresIn > 0:
		session.ExpiresAt = now.Add(grant.ExpiresIn)
	default:
		session.ExpiresAt = tokenExpiry(grant.AccessToken)
	}

	return session
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// client only schedules refreshes from it, the server remains the authority.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}

func (m *SessionManager) inactivityExceeded(lastActiveAt, now time.Time) bool {
	if lastActiveAt.IsZero() {
		return false
	}

	return now.Sub(lastActiveAt) > m.inactivityCeiling
}

// clearLocalSession wipes memory first, then the durable record, detached
// from caller cancellation: the local clear always completes. The install
// identifier is rotated so the next login starts a fresh device identity.
func (m *SessionManager) clearLocalSession(ctx context.Context) error {
	m.mu.Lock()
	m.session = domain.Session{}
	m.identity = nil
	m.installID = uuid.NewString()
	m.notifyLocked()
	m.mu.Unlock()

	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("clear credential record: %w", err)
	}

	return nil
}

func (m *SessionManager) setSession(session domain.Session, identity *domain.UserIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = session
	if identity != nil {
		m.identity = identity
	}
	m.notifyLocked()
}

// persist writes the current in-memory state to the credential store.
// Callers hold no locks.
func (m *SessionManager) persist(ctx context.Context) error {
	m.mu.RLock()
	record := domain.CredentialRecord{
		InstallID: m.installID,
		Session:   m.session,
		Identity:  m.identity,
	}
	m.mu.RUnlock()

	return m.store.Write(ctx, record)
}

func (m *SessionManager) notifyLocked() {
	state := m.session.State(m.clock.Now(), m.refreshSkew)
	if state == m.lastState {
		return
	}
	m.lastState = state

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- state:
		default:
		}
	}
}
