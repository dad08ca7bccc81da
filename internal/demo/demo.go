// Package demo provides the built-in demo accounts used when the remote
// login service is unavailable.
package demo

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/models"
)

// DefaultDelay is the simulated round trip applied before answering.
const DefaultDelay = time.Second

// ErrInvalidCredentials is returned when the username is unknown or the
// password does not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Account is a demo login and the user it resolves to.
type Account struct {
	Password string
	User     models.User
}

// Accounts is the fixed demo credential table keyed by lowercase username.
var Accounts = map[string]Account{
	"admin":   account(1, "admin", "admin123", models.RoleAdmin, "read", "write", "delete", "admin"),
	"manager": account(2, "manager", "manager123", models.RoleManager, "read", "write"),
	"viewer":  account(3, "viewer", "viewer123", models.RoleViewer, "read"),
	"demo":    account(4, "demo", "demo", models.RoleManager, "read", "write"),
}

func account(id int64, username, password string, role models.Role, perms ...string) Account {
	return Account{
		Password: password,
		User: models.User{
			ID:          id,
			Username:    username,
			Email:       username + "@dashboard.com",
			FirstName:   strings.ToUpper(username[:1]) + username[1:],
			LastName:    "User",
			Role:        role,
			Permissions: models.NewPermissionSet(perms...),
		},
	}
}

// Option configures a Directory.
type Option func(*Directory)

// WithDelay sets the simulated delay. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(dir *Directory) {
		dir.delay = d
	}
}

// WithClock overrides the time source used for tokens.
func WithClock(now func() time.Time) Option {
	return func(dir *Directory) {
		dir.now = now
	}
}

// Directory authenticates against the demo credential table.
type Directory struct {
	delay time.Duration
	now   func() time.Time
}

// NewDirectory returns a Directory with DefaultDelay unless overridden.
func NewDirectory(opts ...Option) *Directory {
	dir := &Directory{
		delay: DefaultDelay,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(dir)
	}
	return dir
}

// Authenticate waits for the configured delay then checks the credentials.
// The username match ignores case, the password must match exactly.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*models.AuthResult, error) {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	acct, ok := Accounts[strings.ToLower(username)]
	if !ok || acct.Password != password {
		log.Debug().Str("username", username).Msg("demo credentials rejected")
		return nil, ErrInvalidCredentials
	}

	token, err := d.newToken()
	if err != nil {
		return nil, err
	}

	user := acct.User.Clone()
	user.IsRealUser = false

	return &models.AuthResult{User: user, Token: token}, nil
}

// newToken returns demo-token-<unix millis>-<base58 random>.
func (d *Directory) newToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return fmt.Sprintf("demo-token-%d-%s", d.now().UnixMilli(), base58.Encode(buf)), nil
}
