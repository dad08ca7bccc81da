package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfeidau/jobdash/internal/auth"
	"github.com/wolfeidau/jobdash/internal/logger"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/session"
	"github.com/wolfeidau/jobdash/internal/web"
)

var (
	errNotLoggedIn      = errors.New("not logged in")
	errPermissionDenied = errors.New("permission denied")
)

// LoginCmd authenticates and persists the session.
type LoginCmd struct {
	Username string       `arg:"" optional:"" help:"Username (prompted when omitted)"`
	Password string       `help:"Password (prompted when omitted)" env:"JOBDASH_PASSWORD"`
	Session  SessionFlags `embed:""`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.SetupGlobal(globals.Debug)

	creds := models.Credentials{Username: c.Username, Password: c.Password}
	if _, ok := creds.Validate(); !ok && shouldPrompt() {
		if err := promptCredentials(&creds); err != nil {
			return err
		}
	}
	if msg, ok := creds.Validate(); !ok {
		return errors.New(msg)
	}

	store, closeFn, err := c.Session.restoreSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res := store.Login(ctx, creds.Username, creds.Password)
	if !res.Success {
		return fmt.Errorf("login failed: %s", res.Error)
	}

	log.Debug().Str("username", res.User.Username).Bool("real_user", res.User.IsRealUser).Msg("login complete")
	fmt.Fprintln(stdout, web.WelcomeMessage(res.User))
	return nil
}

// LogoutCmd clears the persisted session.
type LogoutCmd struct {
	Session SessionFlags `embed:""`
}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	logger.SetupGlobal(globals.Debug)

	store, closeFn, err := c.Session.restoreSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	store.Logout(ctx)
	fmt.Fprintln(stdout, "Logged out.")
	return nil
}

// WhoamiCmd prints the current session.
type WhoamiCmd struct {
	JSON    bool         `help:"print the session state as JSON"`
	Session SessionFlags `embed:""`
}

type whoamiJSON struct {
	session.State
	Phase session.Phase `json:"phase"`
}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	logger.SetupGlobal(globals.Debug)

	store, closeFn, err := c.Session.restoreSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	state := store.State()

	if c.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(whoamiJSON{State: state, Phase: store.Phase()})
	}

	if !state.IsAuthenticated {
		return errNotLoggedIn
	}

	u := state.User
	kind := "demo account"
	if u.IsRealUser {
		kind = "registered user"
	}

	fmt.Fprintf(stdout, "User:        %s (%s)\n", u.Username, u.DisplayName())
	fmt.Fprintf(stdout, "Email:       %s\n", u.Email)
	fmt.Fprintf(stdout, "Role:        %s\n", u.Role)
	fmt.Fprintf(stdout, "Permissions: %s\n", strings.Join(u.Permissions, ", "))
	fmt.Fprintf(stdout, "Account:     %s\n", kind)
	return nil
}

// CanCmd checks a permission against the current session.
type CanCmd struct {
	Permission string       `arg:"" help:"Permission to check (read, write, delete, admin)"`
	Session    SessionFlags `embed:""`
}

func (c *CanCmd) Run(ctx context.Context, globals *Globals) error {
	logger.SetupGlobal(globals.Debug)

	store, closeFn, err := c.Session.restoreSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if !store.HasPermission(auth.Permission(c.Permission)) {
		fmt.Fprintln(stdout, "no")
		return fmt.Errorf("%w: %s", errPermissionDenied, c.Permission)
	}

	fmt.Fprintln(stdout, "yes")
	return nil
}

// ProfileCmd edits the current user's profile. Empty flags are left unchanged.
type ProfileCmd struct {
	FirstName string       `help:"new first name"`
	LastName  string       `help:"new last name"`
	Email     string       `help:"new email"`
	Session   SessionFlags `embed:""`
}

func (c *ProfileCmd) patch() models.UserPatch {
	var p models.UserPatch
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&p.FirstName, c.FirstName)
	set(&p.LastName, c.LastName)
	set(&p.Email, c.Email)
	return p
}

func (c *ProfileCmd) Run(ctx context.Context, globals *Globals) error {
	logger.SetupGlobal(globals.Debug)

	patch := c.patch()
	if patch.IsEmpty() {
		return errors.New("nothing to update, pass --first-name, --last-name or --email")
	}

	store, closeFn, err := c.Session.restoreSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.UpdateUser(ctx, patch); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	fmt.Fprintf(stdout, "Updated profile for %s.\n", store.State().User.DisplayName())
	return nil
}
