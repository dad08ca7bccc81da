package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wolfeidau/jobdash/internal/logger"
	"github.com/wolfeidau/jobdash/internal/session"
	"github.com/wolfeidau/jobdash/internal/telemetry"
	"github.com/wolfeidau/jobdash/internal/web"
)

const shutdownTimeout = 5 * time.Second

// ServeCmd hosts the dashboard locally.
type ServeCmd struct {
	Listen           string       `help:"HTTP server listen address" default:"127.0.0.1:8080" env:"JOBDASH_LISTEN"`
	CORSOrigins      []string     `help:"allowed CORS origins for the session API" default:"http://localhost:5173" env:"JOBDASH_CORS_ORIGINS"`
	ShowDemoAccounts bool         `help:"list the demo accounts on the login page" default:"true" negatable:"" env:"JOBDASH_SHOW_DEMO_ACCOUNTS"`
	TrustProxy       bool         `help:"take the client address from X-Forwarded-For and X-Real-IP" env:"JOBDASH_TRUST_PROXY"`
	Telemetry        bool         `help:"export traces and metrics over OTLP" env:"JOBDASH_TELEMETRY"`
	Session          SessionFlags `embed:""`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.SetupGlobal(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting dashboard")

	var opts []session.Option
	var metrics *telemetry.Metrics
	if c.Telemetry {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "jobdash", Version: globals.Version})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()

		metrics = telemetry.GetMetrics()
		opts = append(opts, session.WithMetrics(metrics))
	}

	store, closeFn, err := c.Session.openSession(ctx, opts...)
	if err != nil {
		return err
	}
	defer closeFn()

	unsubscribe := store.Subscribe(func(s session.State) {
		ev := log.Info().
			Stringer("phase", store.Phase()).
			Bool("authenticated", s.IsAuthenticated).
			Bool("loading", s.Loading)
		if s.User != nil {
			ev = ev.Str("user", s.User.Username).Str("role", string(s.User.Role))
		}
		ev.Msg("session changed")
	})
	defer unsubscribe()

	srv, err := web.NewServer(store, web.Config{
		CORSOrigins:       c.CORSOrigins,
		ShowDemoAccounts:  c.ShowDemoAccounts && !c.Session.NoFallback,
		TrustProxyHeaders: c.TrustProxy,
		Logger:            log,
		Metrics:           metrics,
	})
	if err != nil {
		return err
	}

	httpServer := configureHTTPServer(c.Listen, srv.Handler())

	// pages answer with the loading view until this completes
	go store.Restore(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("storage", c.Session.Storage.Type).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
