package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/jobdash/cmd/jobdash/internal/commands"
	"github.com/wolfeidau/jobdash/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in and persist the session"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Clear the persisted session"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the logged in user"`
		Can      commands.CanCmd      `cmd:"" help:"Check whether the logged in user holds a permission"`
		Profile  commands.ProfileCmd  `cmd:"" help:"Update the logged in user's profile"`
		Register commands.RegisterCmd `cmd:"" help:"Request a new account"`
		Serve    commands.ServeCmd    `cmd:"" help:"Serve the dashboard"`
		Config   kong.ConfigFlag      `help:"YAML config file (default: ~/.jobdash/config.yaml)" env:"JOBDASH_CONFIG"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("jobdash"),
		kong.Description("Session and access control for the batch job dashboard."),
		kong.Vars{
			"version": version,
		},
		kong.Configuration(config.Loader, config.DefaultPath),
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
