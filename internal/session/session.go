// Package session owns who is logged in to the dashboard and what they can do.
//
// A Store holds the current user in memory and mirrors it to a kv.Store under
// the "user" and "authToken" keys. Login tries the primary authenticator and
// falls back to a second one; any failure resolves to a Result rather than an
// error. The store is safe for concurrent use.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfeidau/jobdash/internal/auth"
	"github.com/wolfeidau/jobdash/internal/kv"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/telemetry"
)

// Storage keys.
const (
	KeyUser      = "user"
	KeyAuthToken = "authToken"
)

// Messages returned in Result.Error.
const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgLoginFailed        = "Login failed. Please try again."
	MsgLoginSuperseded    = "Login superseded by a newer request"
)

// ErrNotAuthenticated is returned by operations that need an active user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Authenticator checks credentials against an identity source.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.AuthResult, error)
}

// State is a point in time view of the session.
type State struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Loading         bool         `json:"loading"`
}

// Role returns the role of the current user, or RoleUnknown when there is none.
func (s State) Role() models.Role {
	if s.User == nil {
		return models.RoleUnknown
	}
	return s.User.Role
}

// HasPermission evaluates perm against this state.
func (s State) HasPermission(perm auth.Permission) bool {
	return auth.HasPermission(s.User, s.IsAuthenticated, perm)
}

// Phase is the position of the store in its lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Result is the outcome of Login.
type Result struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records login, restore and logout counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store is the session store. Create one with New and share it.
type Store struct {
	kv       kv.Store
	primary  Authenticator
	fallback Authenticator
	metrics  *telemetry.Metrics

	// writeMu serializes storage writes and every change to user. It is
	// taken before mu and never while holding it.
	writeMu sync.Mutex

	mu            sync.RWMutex
	user          *models.User
	token         string
	started       bool
	settled       bool
	restoring     bool
	loginInFlight bool
	// seq orders logins and logouts so a stale login never applies.
	seq uint64

	listenersMu sync.Mutex
	listeners   map[uint64]func(State)
	nextID      uint64
}

// New creates a store persisting to store. Either authenticator may be nil.
func New(store kv.Store, primary, fallback Authenticator, opts ...Option) *Store {
	s := &Store{
		kv:        store,
		primary:   primary,
		fallback:  fallback,
		listeners: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot. The user is a copy the caller may modify.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	return State{
		User:            s.user.Clone(),
		IsAuthenticated: s.user != nil,
		Loading:         s.loadingLocked(),
	}
}

func (s *Store) loadingLocked() bool {
	return !s.settled || s.restoring || s.loginInFlight
}

// Phase reports the lifecycle position.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case !s.started:
		return PhaseUninitialized
	case s.loadingLocked():
		return PhaseLoading
	case s.user != nil:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

// HasPermission reports whether the current session grants perm. Admins
// pass every check, then explicit grants, then "read" and the empty
// permission pass for any authenticated user.
func (s *Store) HasPermission(perm auth.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auth.HasPermission(s.user, s.user != nil, perm)
}

// Subscribe registers fn to be called with the new state after every
// transition. The returned func removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	state := s.State()

	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// persist writes the user and token together.
func (s *Store) persist(ctx context.Context, user *models.User, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return s.kv.Batch(ctx, func(tx kv.Tx) error {
		if err := tx.Put(KeyUser, string(data)); err != nil {
			return err
		}
		return tx.Put(KeyAuthToken, token)
	})
}

func (s *Store) clearStorage(ctx context.Context) error {
	return kv.Delete(ctx, s.kv, KeyUser, KeyAuthToken)
}
