package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
	"github.com/halcyonapp/halcyon-session-cli/internal/ports"
)

const maxResponseBytes = 1 << 20

const (
	loginPath   = "/v1/auth/login"
	refreshPath = "/v1/auth/refresh"
	logoutPath  = "/v1/auth/logout"
	profilePath = "/v1/auth/profile"
)

// Error codes the identity service returns in its error envelope.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeTokenInvalid       = "token_invalid"
	codeInvalidGrant       = "invalid_grant"
)

// Client talks to the remote identity service. Every request carries a
// bounded timeout; a timed-out call surfaces as domain.ErrNetworkUnavailable
// so the session manager treats it as transient rather than as token
// invalidation.
type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration

	// DeviceID supplies the install identifier per request. It is a func
	// because the identifier rotates on logout; a value captured at wiring
	// time would go stale within the same process.
	DeviceID func() string
}

var _ ports.AuthAPI = (*Client)(nil)

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *userPayload `json:"user,omitempty"`
}

type userPayload struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Flags     []string `json:"flags"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, username, password string) (domain.TokenGrant, error) {
	if username == "" {
		return domain.TokenGrant{}, errors.New("username is required")
	}

	payload := map[string]string{"username": username, "password": password}

	resp, err := c.post(ctx, loginPath, payload)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("login: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !statusOK(resp.StatusCode) {
		return domain.TokenGrant{}, fmt.Errorf("login: %w", c.mapLoginError(resp))
	}

	grant, err := decodeGrant(resp.Body)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("login: %w", err)
	}
	if grant.RefreshToken == "" {
		return domain.TokenGrant{}, fmt.Errorf("login: %w: response missing refresh token", domain.ErrServerError)
	}

	return grant, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenGrant, error) {
	if refreshToken == "" {
		return domain.TokenGrant{}, domain.ErrUnauthenticated
	}

	payload := map[string]string{"refresh_token": refreshToken}

	resp, err := c.post(ctx, refreshPath, payload)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("refresh: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !statusOK(resp.StatusCode) {
		return domain.TokenGrant{}, fmt.Errorf("refresh: %w", c.mapRefreshError(resp))
	}

	grant, err := decodeGrant(resp.Body)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("refresh: %w", err)
	}

	return grant, nil
}

// Logout revokes the refresh token server-side. Callers treat it as
// best-effort; local logout never blocks on this succeeding.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	payload := map[string]string{"refresh_token": refreshToken}

	resp, err := c.post(ctx, logoutPath, payload)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// An already-revoked token is not a failure worth reporting.
	if !statusOK(resp.StatusCode) && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("logout: %w", c.mapGenericError(resp))
	}

	return nil
}

func (c *Client) FetchProfile(ctx context.Context, accessToken string) (domain.UserIdentity, error) {
	if accessToken == "" {
		return domain.UserIdentity{}, domain.ErrUnauthenticated
	}

	endpoint, err := buildAPIURL(c.BaseURL, profilePath)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	c.setCommonHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("fetch profile: %w: %w", domain.ErrNetworkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.UserIdentity{}, fmt.Errorf("fetch profile: %w", domain.ErrUnauthenticated)
	}
	if !statusOK(resp.StatusCode) {
		return domain.UserIdentity{}, fmt.Errorf("fetch profile: %w", c.mapGenericError(resp))
	}

	var payload userPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("decode profile response: %w", err)
	}
	if payload.ID == "" {
		return domain.UserIdentity{}, fmt.Errorf("fetch profile: %w: response missing user id", domain.ErrServerError)
	}

	return identityFromPayload(payload), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	requestCtx, cancel := c.requestContext(ctx)
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkUnavailable, err)
	}

	// The response body outlives the request context only until the caller
	// closes it; tie cancellation to body close.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c *Client) mapLoginError(resp *http.Response) error {
	envelope := decodeError(resp)
	switch {
	case envelope.Error == codeInvalidCredentials,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, envelopeDetail(resp.StatusCode, envelope))
	default:
		return statusError(resp.StatusCode, envelope)
	}
}

func (c *Client) mapRefreshError(resp *http.Response) error {
	envelope := decodeError(resp)
	switch {
	case envelope.Error == codeTokenInvalid,
		envelope.Error == codeInvalidGrant,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrSessionExpired, envelopeDetail(resp.StatusCode, envelope))
	default:
		return statusError(resp.StatusCode, envelope)
	}
}

func (c *Client) mapGenericError(resp *http.Response) error {
	return statusError(resp.StatusCode, decodeError(resp))
}

func statusOK(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

func statusError(statusCode int, envelope errorResponse) error {
	if statusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", domain.ErrServerError, envelopeDetail(statusCode, envelope))
	}

	return fmt.Errorf("%w: unexpected response: %s", domain.ErrServerError, envelopeDetail(statusCode, envelope))
}

func decodeError(resp *http.Response) errorResponse {
	var envelope errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope); err != nil {
		return errorResponse{}
	}
	return envelope
}

func envelopeDetail(statusCode int, envelope errorResponse) string {
	if envelope.Error == "" {
		return fmt.Sprintf("status %d", statusCode)
	}
	if envelope.Message != "" {
		return envelope.Error + ": " + envelope.Message
	}
	return envelope.Error
}

func decodeGrant(body io.Reader) (domain.TokenGrant, error) {
	var payload tokenResponse
	if err := json.NewDecoder(io.LimitReader(body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.TokenGrant{}, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return domain.TokenGrant{}, fmt.Errorf("%w: response missing access token", domain.ErrServerError)
	}

	grant := domain.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    time.Duration(payload.ExpiresIn) * time.Second,
	}
	if payload.User != nil {
		identity := identityFromPayload(*payload.User)
		grant.Identity = &identity
	}

	return grant, nil
}

func identityFromPayload(payload userPayload) domain.UserIdentity {
	return domain.UserIdentity{
		ID:        payload.ID,
		Username:  payload.Username,
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Flags:     payload.Flags,
	}
}

func (c *Client) setCommonHeaders(req *http.Request) {
	if c.DeviceID == nil {
		return
	}
	if id := c.DeviceID(); id != "" {
		req.Header.Set("X-Device-Id", id)
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
