package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/authclient"
	"github.com/wolfeidau/jobdash/internal/logger"
)

// RegisterCmd submits an account request to the login service.
type RegisterCmd struct {
	Username  string   `arg:"" optional:"" help:"Username (prompted when omitted)"`
	Password  string   `help:"Password, at least 6 characters" env:"JOBDASH_PASSWORD"`
	Email     string   `help:"Email address"`
	FirstName string   `help:"First name"`
	LastName  string   `help:"Last name"`
	Role      string   `help:"Requested role (viewer, manager or admin)"`
	API       APIFlags `embed:"" prefix:"api-"`
}

func (c *RegisterCmd) request() authclient.AccountRequest {
	return authclient.AccountRequest{
		Username:  c.Username,
		Password:  c.Password,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Role:      c.Role,
	}
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	logger.SetupGlobal(globals.Debug)

	req := c.request()
	if req.Validate() != nil && shouldPrompt() {
		if err := promptAccount(&req); err != nil {
			return err
		}
	}

	pending, err := c.API.client().Register(ctx, req)
	if err != nil {
		return fmt.Errorf("account request failed: %w", err)
	}

	log.Debug().Int64("id", pending.ID).Str("status", pending.Status).Msg("account request submitted")

	fmt.Fprintf(stdout, "Account request submitted for %s.\n", pending.Username)
	fmt.Fprintf(stdout, "Requested role: %s\n", pending.RequestedRole)
	fmt.Fprintf(stdout, "Status:         %s\n", pending.Status)
	fmt.Fprintln(stdout, "An administrator must approve the request before you can log in.")
	return nil
}
