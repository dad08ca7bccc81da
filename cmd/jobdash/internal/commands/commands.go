package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/authclient"
	"github.com/wolfeidau/jobdash/internal/demo"
	"github.com/wolfeidau/jobdash/internal/kv"
	boltkv "github.com/wolfeidau/jobdash/internal/kv/bbolt"
	filekv "github.com/wolfeidau/jobdash/internal/kv/file"
	"github.com/wolfeidau/jobdash/internal/kv/memory"
	rediskv "github.com/wolfeidau/jobdash/internal/kv/redis"
	"github.com/wolfeidau/jobdash/internal/session"
	"go.etcd.io/bbolt"
)

type Globals struct {
	Debug   bool
	Version string
}

// stdout is where commands print their results.
var stdout io.Writer = os.Stdout

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// APIFlags configure the remote login service.
type APIFlags struct {
	URL     string        `help:"login service base URL" default:"http://localhost:8000" env:"JOBDASH_API_URL"`
	Timeout time.Duration `help:"login service request timeout" default:"30s" env:"JOBDASH_API_TIMEOUT"`
	Retries uint          `help:"attempts against the login service before giving up on it" default:"1" env:"JOBDASH_API_RETRIES"`
}

func (f APIFlags) client() *authclient.Client {
	cfg := authclient.DefaultConfig()
	cfg.BaseURL = f.URL
	cfg.Timeout = f.Timeout
	if f.Retries > 0 {
		cfg.MaxAttempts = f.Retries
	}
	return authclient.New(cfg)
}

// StorageFlags select where the session is persisted.
type StorageFlags struct {
	Type        string `help:"session storage backend (memory, file, bbolt or redis)" default:"file" enum:"memory,file,bbolt,redis" env:"JOBDASH_STORAGE_TYPE"`
	DataDir     string `help:"directory for file and bbolt storage (default: ~/.jobdash/)" env:"JOBDASH_STORAGE_DATA_DIR"`
	RedisURL    string `help:"redis URL for redis storage" default:"redis://localhost:6379/0" env:"JOBDASH_STORAGE_REDIS_URL"`
	RedisPrefix string `help:"key prefix for redis storage" default:"jobdash:" env:"JOBDASH_STORAGE_REDIS_PREFIX"`
}

func (f StorageFlags) dataDir() (string, error) {
	if f.DataDir != "" {
		return f.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".jobdash"), nil
}

// open returns the configured kv.Store.
func (f StorageFlags) open(ctx context.Context) (kv.Store, error) {
	switch f.Type {
	case "memory":
		return memory.NewStore(), nil
	case "file", "":
		dir, err := f.dataDir()
		if err != nil {
			return nil, err
		}
		return filekv.NewStore(dir)
	case "bbolt":
		dir, err := f.dataDir()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return boltkv.NewStoreFromFile(filepath.Join(dir, "session.db"), &bbolt.Options{Timeout: time.Second})
	case "redis":
		return rediskv.NewStoreFromURL(ctx, f.RedisURL, f.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage type %q", f.Type)
	}
}

// SessionFlags are shared by every command that works with the session.
type SessionFlags struct {
	API           APIFlags      `embed:"" prefix:"api-"`
	Storage       StorageFlags  `embed:"" prefix:"storage-"`
	NoFallback    bool          `help:"disable the built-in demo accounts" env:"JOBDASH_NO_FALLBACK"`
	FallbackDelay time.Duration `help:"simulated latency of the demo accounts" default:"1s" env:"JOBDASH_FALLBACK_DELAY"`
}

// openSession builds a session store from the flags. It does not restore;
// callers decide when to. The returned close func releases the storage.
func (f SessionFlags) openSession(ctx context.Context, opts ...session.Option) (*session.Store, func(), error) {
	store, err := f.Storage.open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	var fallback session.Authenticator
	if !f.NoFallback {
		fallback = demo.NewDirectory(demo.WithDelay(f.FallbackDelay))
	}

	log.Debug().
		Str("storage", f.Storage.Type).
		Str("api", f.API.URL).
		Bool("fallback", fallback != nil).
		Msg("session store configured")

	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close session storage")
		}
	}

	return session.New(store, f.API.client(), fallback, opts...), closeFn, nil
}

// restoreSession opens and restores the persisted session.
func (f SessionFlags) restoreSession(ctx context.Context) (*session.Store, func(), error) {
	s, closeFn, err := f.openSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.Restore(ctx)
	return s, closeFn, nil
}
