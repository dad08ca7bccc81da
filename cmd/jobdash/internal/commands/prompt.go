package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/wolfeidau/jobdash/internal/authclient"
	"github.com/wolfeidau/jobdash/internal/models"
)

var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE"}

// shouldPrompt reports whether stdin is a terminal outside CI.
func shouldPrompt() bool {
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			return false
		}
	}

	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// promptCredentials asks for whichever of username and password is empty.
func promptCredentials(creds *models.Credentials) error {
	var fields []huh.Field
	if creds.Username == "" {
		fields = append(fields, huh.NewInput().Title("Username").Value(&creds.Username))
	}
	if creds.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&creds.Password))
	}
	if len(fields) == 0 {
		return nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// promptAccount fills in the empty fields of an account request.
func promptAccount(req *authclient.AccountRequest) error {
	var fields []huh.Field
	input := func(title string, dst *string) {
		if *dst == "" {
			fields = append(fields, huh.NewInput().Title(title).Value(dst))
		}
	}

	input("Username", &req.Username)
	input("Email", &req.Email)
	input("First name", &req.FirstName)
	input("Last name", &req.LastName)

	if req.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			Description("At least 6 characters").
			EchoMode(huh.EchoModePassword).
			Value(&req.Password))
	}

	if req.Role == "" {
		req.Role = string(models.RoleViewer)
		fields = append(fields, huh.NewSelect[string]().
			Title("Requested role").
			Options(
				huh.NewOption("Viewer", string(models.RoleViewer)),
				huh.NewOption("Manager", string(models.RoleManager)),
				huh.NewOption("Admin", string(models.RoleAdmin)),
			).
			Value(&req.Role))
	}

	if len(fields) == 0 {
		return nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}
