// Package authclient talks to the dashboard's remote account service: login
// and new account requests.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/models"
)

const (
	loginPath    = "/api/login/"
	registerPath = "/api/register/"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20
)

var (
	// ErrLoginRejected is returned when the service answers with success=false.
	ErrLoginRejected = errors.New("login rejected")
	// ErrUnexpectedStatus is returned for responses outside the documented set.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Config holds common client configuration
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxAttempts   uint
	RetryInterval time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:8000",
		Timeout:       30 * time.Second,
		MaxAttempts:   1,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The configured timeout is not applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client calls the account service over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	maxAttempts   uint
	retryInterval time.Duration
}

// New creates a client with the given configuration
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		maxAttempts:   max(cfg.MaxAttempts, 1),
		retryInterval: cfg.RetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginResponse is the body of a successful call to the login endpoint.
type LoginResponse struct {
	Success    bool         `json:"success"`
	User       *models.User `json:"user"`
	Token      string       `json:"token"`
	IsRealUser bool         `json:"isRealUser"`
	Error      string       `json:"error,omitempty"`
}

// Login posts the credentials to the login endpoint. Any non-2xx status, an
// undecodable body or success=false is an error.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*LoginResponse, error) {
	resp, err := c.post(ctx, loginPath, creds)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("login: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var out LoginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	if !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoginRejected, out.Error)
		}
		return nil, ErrLoginRejected
	}

	if out.User == nil || out.Token == "" {
		return nil, fmt.Errorf("login response missing user or token")
	}

	return &out, nil
}

// Authenticate logs in and returns the user built from the response, marked
// as a real user only when the service says so.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*models.AuthResult, error) {
	resp, err := c.Login(ctx, models.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	user := resp.User.Clone()
	user.IsRealUser = resp.IsRealUser

	return &models.AuthResult{User: user, Token: resp.Token}, nil
}

// post sends body as JSON. Only transport failures are retried, any HTTP
// response is returned to the caller as is.
func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + path
	attempt := 0

	op := func() (*http.Response, error) {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			log.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("request failed")
			return nil, err
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryInterval)),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return resp, nil
}
