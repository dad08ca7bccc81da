package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/kv"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	pathNone     = "none"
	pathPrimary  = "primary"
	pathFallback = "fallback"

	outcomeSuccess    = "success"
	outcomeInvalid    = "invalid"
	outcomeError      = "error"
	outcomeSuperseded = "superseded"

	restoreRestored = "restored"
	restoreEmpty    = "empty"
	restoreCorrupt  = "corrupt"
	restoreError    = "error"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errPanicked           = errors.New("panic recovered")
)

// Restore loads a previously persisted session. When the stored user or
// token is missing, or the user does not decode, both keys are removed and
// the store is left anonymous. Loading is false once it returns.
//
// Storage is read without holding the lock so State keeps answering, with
// Loading set, while a slow backend responds.
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	s.restoring = true
	seq := s.seq
	s.mu.Unlock()
	s.notify()

	user, token, outcome := s.readStored(ctx)

	s.writeMu.Lock()
	s.mu.Lock()
	outcome, wipe := s.applyRestoreLocked(seq, user, token, outcome)
	s.restoring = false
	s.settled = true
	s.mu.Unlock()

	if wipe {
		if err := protect(func() error { return s.clearStorage(ctx) }); err != nil {
			log.Warn().Err(err).Msg("failed to clear stored session")
		}
	}
	s.writeMu.Unlock()

	log.Debug().Str("outcome", outcome).Msg("session restore finished")
	if s.metrics != nil {
		s.metrics.RecordRestore(ctx, outcome)
	}

	s.notify()
}

// applyRestoreLocked reports whether storage should be cleared.
func (s *Store) applyRestoreLocked(seq uint64, user *models.User, token, outcome string) (string, bool) {
	// A login or logout happened while storage was being read.
	if seq != s.seq {
		return outcomeSuperseded, false
	}

	if user != nil {
		s.user = user
		s.token = token
		return outcome, false
	}

	s.user = nil
	s.token = ""
	return outcome, true
}

func (s *Store) readStored(ctx context.Context) (*models.User, string, string) {
	var rawUser, token string

	err := protect(func() error {
		var err error
		if rawUser, err = s.kv.Get(ctx, KeyUser); err != nil {
			return err
		}
		token, err = s.kv.Get(ctx, KeyAuthToken)
		return err
	})
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, "", restoreEmpty
		}
		log.Warn().Err(err).Msg("failed to read stored session")
		return nil, "", restoreError
	}

	if rawUser == "" || token == "" {
		return nil, "", restoreEmpty
	}

	var user *models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user == nil {
		log.Debug().Err(err).Msg("discarding corrupt stored session")
		return nil, "", restoreCorrupt
	}

	return user, token, restoreRestored
}

// Login authenticates against the primary authenticator, falling back to the
// fallback authenticator on any primary failure. It never returns an error
// or panics: every failure is reported in the Result.
//
// Only the most recent Login (or Logout) may change the session. A login
// that finishes after a newer one started reports MsgLoginSuperseded and
// leaves memory and storage untouched.
func (s *Store) Login(ctx context.Context, username, password string) Result {
	ctx, span := telemetry.Tracer().Start(ctx, "session.Login")
	defer span.End()

	started := time.Now()

	s.mu.Lock()
	s.started = true
	s.seq++
	seq := s.seq
	s.loginInFlight = true
	s.mu.Unlock()
	s.notify()

	log.Info().Str("username", username).Msg("attempting login")

	authRes, path, err := s.authenticate(ctx, username, password)

	res, outcome := s.finishLogin(ctx, seq, authRes, err)

	span.SetAttributes(
		attribute.String("login.path", path),
		attribute.String("login.outcome", outcome),
	)
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}

	if s.metrics != nil {
		s.metrics.RecordLogin(ctx, path, outcome, float64(time.Since(started).Milliseconds()))
	}

	if res.Success {
		log.Info().Str("username", username).Str("path", path).Msg("login succeeded")
	} else {
		log.Warn().Str("username", username).Str("path", path).Str("outcome", outcome).Msg(res.Error)
	}

	if outcome != outcomeSuperseded {
		s.notify()
	}

	return res
}

// finishLogin applies the authentication outcome for login seq. The storage
// write happens outside mu so State keeps answering while it runs.
func (s *Store) finishLogin(ctx context.Context, seq uint64, authRes *models.AuthResult, authErr error) (Result, string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return Result{Error: MsgLoginSuperseded}, outcomeSuperseded
	}
	if authErr != nil {
		s.loginInFlight = false
		s.settled = true
		s.mu.Unlock()

		if errors.Is(authErr, errInvalidCredentials) {
			return Result{Error: MsgInvalidCredentials}, outcomeInvalid
		}
		return Result{Error: MsgLoginFailed}, outcomeError
	}
	s.mu.Unlock()

	persistErr := protect(func() error { return s.persist(ctx, authRes.User, authRes.Token) })

	s.mu.Lock()
	superseded := seq != s.seq
	if !superseded {
		s.loginInFlight = false
		s.settled = true
		if persistErr == nil {
			s.user = authRes.User
			s.token = authRes.Token
		}
	}
	s.mu.Unlock()

	if superseded {
		// A newer login started during the write.
		if persistErr == nil {
			s.revertStorage(ctx)
		}
		return Result{Error: MsgLoginSuperseded}, outcomeSuperseded
	}

	if persistErr != nil {
		log.Error().Err(persistErr).Msg("failed to persist session")
		return Result{Error: MsgLoginFailed}, outcomeError
	}

	return Result{Success: true, User: authRes.User.Clone()}, outcomeSuccess
}

// revertStorage rewrites storage to match the in-memory session. Callers
// hold writeMu.
func (s *Store) revertStorage(ctx context.Context) {
	s.mu.RLock()
	user, token := s.user, s.token
	s.mu.RUnlock()

	err := protect(func() error {
		if user == nil {
			return s.clearStorage(ctx)
		}
		return s.persist(ctx, user, token)
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to revert stored session")
	}
}

// authenticate returns the accepted identity and the path that produced it.
// Invalid credentials are reported as errInvalidCredentials, anything else
// unexpected as some other error.
func (s *Store) authenticate(ctx context.Context, username, password string) (*models.AuthResult, string, error) {
	path := pathNone
	if s.primary != nil {
		path = pathPrimary
		res, err := call(ctx, s.primary, username, password)
		if err == nil {
			res.User = res.User.Clone()
			return res, pathPrimary, nil
		}
		log.Debug().Err(err).Msg("primary login failed, using fallback")
	}

	if s.fallback == nil {
		return nil, path, errInvalidCredentials
	}

	res, err := call(ctx, s.fallback, username, password)
	if err != nil {
		if errors.Is(err, errPanicked) || ctx.Err() != nil {
			return nil, pathFallback, err
		}
		return nil, pathFallback, fmt.Errorf("%w: %w", errInvalidCredentials, err)
	}

	res.User = res.User.Clone()
	res.User.IsRealUser = false

	return res, pathFallback, nil
}

// call invokes a and treats an empty answer as a failure.
func call(ctx context.Context, a Authenticator, username, password string) (*models.AuthResult, error) {
	var res *models.AuthResult
	err := protect(func() error {
		var err error
		res, err = a.Authenticate(ctx, username, password)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.User == nil {
		return nil, errors.New("authenticator returned no user")
	}
	return res, nil
}

// protect runs fn, converting a panic into an error wrapping errPanicked.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered panic in session store")
			err = fmt.Errorf("%w: %v", errPanicked, r)
		}
	}()
	return fn()
}

// Logout clears the session from memory and storage. It is idempotent and
// cancels the effect of any login still in flight. Storage errors are logged.
func (s *Store) Logout(ctx context.Context) {
	s.writeMu.Lock()
	s.mu.Lock()
	s.started = true
	s.settled = true
	s.seq++
	s.loginInFlight = false
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	if err := protect(func() error { return s.clearStorage(ctx) }); err != nil {
		log.Warn().Err(err).Msg("failed to clear stored session")
	}
	s.writeMu.Unlock()

	log.Info().Msg("logged out")
	if s.metrics != nil {
		s.metrics.LogoutsTotal.Add(ctx, 1)
	}

	s.notify()
}

// UpdateUser merges patch into the current user and persists the result.
// It returns ErrNotAuthenticated, changing nothing, when no user is logged in.
func (s *Store) UpdateUser(ctx context.Context, patch models.UserPatch) error {
	s.writeMu.Lock()

	// The user only changes under writeMu, so current stays valid below.
	s.mu.RLock()
	current := s.user
	s.mu.RUnlock()

	if current == nil {
		s.writeMu.Unlock()
		return ErrNotAuthenticated
	}

	updated := patch.Apply(current)

	data, err := json.Marshal(updated)
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := protect(func() error { return kv.Put(ctx, s.kv, KeyUser, string(data)) }); err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to persist user: %w", err)
	}

	s.mu.Lock()
	s.user = updated
	s.mu.Unlock()
	s.writeMu.Unlock()

	log.Debug().Str("username", updated.Username).Msg("user updated")
	s.notify()

	return nil
}
