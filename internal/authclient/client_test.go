package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/jobdash/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	return New(cfg)
}

func TestClient_Login(t *testing.T) {
	var got models.Credentials

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/login/", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"user": {"id": 7, "username": "jane", "email": "jane@example.com", "firstName": "Jane", "lastName": "Doe", "role": "manager", "permissions": ["read", "write"]},
			"token": "django-token-7-jane",
			"isRealUser": true
		}`))
	})

	res, err := client.Authenticate(context.Background(), "jane", "secret")
	require.NoError(t, err)

	require.Equal(t, models.Credentials{Username: "jane", Password: "secret"}, got)
	require.Equal(t, "django-token-7-jane", res.Token)
	require.Equal(t, &models.User{
		ID:          7,
		Username:    "jane",
		Email:       "jane@example.com",
		FirstName:   "Jane",
		LastName:    "Doe",
		Role:        models.RoleManager,
		Permissions: models.NewPermissionSet("read", "write"),
		IsRealUser:  true,
	}, res.User)
}

func TestClient_Login_IsRealUserDefaultsFalse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "user": {"id": 1, "username": "admin", "role": "admin", "permissions": ["read"]}, "token": "t"}`))
	})

	res, err := client.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.False(t, res.User.IsRealUser)
}

func TestClient_Login_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		expectedErr error
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success": false}`))
			},
			expectedErr: ErrUnexpectedStatus,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			expectedErr: ErrUnexpectedStatus,
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success": false, "error": "Invalid username or password"}`))
			},
			expectedErr: ErrLoginRejected,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>not json</html>`))
			},
		},
		{
			name: "missing token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success": true, "user": {"id": 1}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			res, err := client.Authenticate(context.Background(), "jane", "secret")
			require.Error(t, err)
			require.Nil(t, res)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestClient_Login_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = url
	client := New(cfg)

	_, err := client.Authenticate(context.Background(), "jane", "secret")
	require.Error(t, err)
}

// flakyTransport fails the first failures round trips.
type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(req)
}

func TestClient_Login_RetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "user": {"id": 1, "username": "admin"}, "token": "t"}`))
	}))
	defer srv.Close()

	transport := &flakyTransport{failures: 2, next: http.DefaultTransport}
	client := New(Config{BaseURL: srv.URL, MaxAttempts: 3, RetryInterval: time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}))

	res, err := client.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.Equal(t, "admin", res.User.Username)
	require.Equal(t, int32(3), transport.calls.Load())
}

func TestClient_Login_GivesUpAfterMaxAttempts(t *testing.T) {
	transport := &flakyTransport{failures: 10, next: http.DefaultTransport}
	client := New(Config{BaseURL: "http://example.invalid", MaxAttempts: 2, RetryInterval: time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}))

	_, err := client.Authenticate(context.Background(), "admin", "admin123")
	require.Error(t, err)
	require.Equal(t, int32(2), transport.calls.Load())
}

func TestClient_Login_DoesNotRetryResponses(t *testing.T) {
	var calls atomic.Int32
	client := New(Config{MaxAttempts: 5, RetryInterval: time.Millisecond})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	client.baseURL = srv.URL

	_, err := client.Authenticate(context.Background(), "admin", "admin123")
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Equal(t, int32(1), calls.Load())
}
