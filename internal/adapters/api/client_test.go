package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		BaseURL:        server.URL,
		HTTPClient:     server.Client(),
		RequestTimeout: 2 * time.Second,
		DeviceID:       func() string { return "device-1" },
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/login", r.URL.Path)
		assert.Equal(t, "device-1", r.Header.Get("X-Device-Id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "correct", body["password"])

		writeJSON(t, w, http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    900,
			"user": map[string]any{
				"id":       "u-1",
				"username": "alice",
				"email":    "alice@example.com",
				"flags":    []string{"premium"},
			},
		})
	}))
	defer server.Close()

	grant, err := newTestClient(server).Login(context.Background(), "alice", "correct")
	require.NoError(t, err)
	assert.Equal(t, "access-1", grant.AccessToken)
	assert.Equal(t, "refresh-1", grant.RefreshToken)
	assert.Equal(t, 15*time.Minute, grant.ExpiresIn)
	require.NotNil(t, grant.Identity)
	assert.Equal(t, "alice", grant.Identity.Username)
	assert.Equal(t, []string{"premium"}, grant.Identity.Flags)
}

func TestLoginInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{
			"error":   "invalid_credentials",
			"message": "unknown username or password",
		})
	}))
	defer server.Close()

	_, err := newTestClient(server).Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestLoginMissingRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"access_token": "access-1"})
	}))
	defer server.Close()

	_, err := newTestClient(server).Login(context.Background(), "alice", "correct")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerError)
}

func TestLoginServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server).Login(context.Background(), "alice", "correct")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerError)
}

func TestRefreshSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refresh_token"])

		writeJSON(t, w, http.StatusOK, map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"expires_in":    900,
		})
	}))
	defer server.Close()

	grant, err := newTestClient(server).Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", grant.AccessToken)
	assert.Equal(t, "refresh-2", grant.RefreshToken)
}

func TestRefreshRejectedTokenMapsToSessionExpired(t *testing.T) {
	codes := []string{"token_invalid", "invalid_grant"}
	for _, code := range codes {
		t.Run(code, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": code})
			}))
			defer server.Close()

			_, err := newTestClient(server).Refresh(context.Background(), "refresh-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSessionExpired)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestRefreshUnauthorizedStatusMapsToSessionExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server).Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestRefreshServerErrorIsNotSessionExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusServiceUnavailable, map[string]string{"error": "maintenance"})
	}))
	defer server.Close()

	_, err := newTestClient(server).Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerError)
	assert.NotErrorIs(t, err, domain.ErrSessionExpired)
}

func TestRefreshTimeoutMapsToNetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(server)
	client.RequestTimeout = 50 * time.Millisecond

	_, err := client.Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestRefreshConnectionRefusedMapsToNetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := &Client{BaseURL: server.URL, RequestTimeout: time.Second}

	_, err := client.Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestRefreshWithEmptyToken(t *testing.T) {
	client := &Client{BaseURL: "http://localhost"}

	_, err := client.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestLogoutNoContentSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server).Logout(context.Background(), "refresh-1"))
}

func TestLogoutRevokedTokenIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server).Logout(context.Background(), "refresh-1"))
}

func TestLogoutServerErrorIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestClient(server).Logout(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerError)
}

func TestFetchProfileSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/auth/profile", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":         "u-1",
			"username":   "alice",
			"email":      "alice@example.com",
			"first_name": "Alice",
		})
	}))
	defer server.Close()

	identity, err := newTestClient(server).FetchProfile(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.ID)
	assert.Equal(t, "Alice", identity.FirstName)
}

func TestFetchProfileUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchProfile(context.Background(), "access-stale")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestDeviceIDHeaderFollowsRotation(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("X-Device-Id"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    900,
		})
	}))
	defer server.Close()

	deviceID := "device-1"
	client := newTestClient(server)
	client.DeviceID = func() string { return deviceID }

	_, err := client.Refresh(context.Background(), "refresh-0")
	require.NoError(t, err)

	deviceID = "device-2"
	_, err = client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"device-1", "device-2"}, seen)
}

func TestBuildAPIURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		path    string
		want    string
		wantErr bool
	}{
		{name: "plain base", baseURL: "https://api.halcyonapp.com", path: "/v1/auth/login", want: "https://api.halcyonapp.com/v1/auth/login"},
		{name: "trailing slash", baseURL: "https://api.halcyonapp.com/", path: "/v1/auth/login", want: "https://api.halcyonapp.com/v1/auth/login"},
		{name: "empty base", baseURL: "", path: "/v1/auth/login", wantErr: true},
		{name: "missing scheme", baseURL: "api.halcyonapp.com", path: "/v1/auth/login", wantErr: true},
		{name: "unsupported scheme", baseURL: "ftp://api.halcyonapp.com", path: "/v1/auth/login", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildAPIURL(tt.baseURL, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
