package gate

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/jobdash/internal/auth"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/session"
	"github.com/wolfeidau/jobdash/internal/telemetry"
)

// DefaultLoginPath is where anonymous requests are redirected.
const DefaultLoginPath = "/login"

// Source supplies the session a request is checked against.
type Source interface {
	State() session.State
}

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the user stored by Require for an allowed request.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}

// Option configures Require.
type Option func(*options)

type options struct {
	loginPath string
	metrics   *telemetry.Metrics
}

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(o *options) {
		o.loginPath = path
	}
}

// WithMetrics counts decisions by outcome.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

var (
	loadingTmpl = template.Must(template.New("loading").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p>Loading Dashboard...</p></body></html>
`))

	deniedTmpl = template.Must(template.New("denied").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Access Denied</title></head>
<body>
<h1>Access Denied</h1>
<p>You don't have permission to access this page.<br>
Required permission: <strong>{{.RequiredPermission}}</strong><br>
Your role: <strong>{{.Role}}</strong></p>
</body></html>
`))
)

// Require returns middleware guarding a view with the given permission.
// Loading becomes 503 with Retry-After, anonymous requests are redirected to
// the login page with a from parameter, and denied requests get 403.
func Require(source Source, required auth.Permission, opts ...Option) func(http.Handler) http.Handler {
	o := &options{loginPath: DefaultLoginPath}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := source.State()
			decision := Decide(state, state.HasPermission, required, r.URL.RequestURI())

			if o.metrics != nil {
				o.metrics.RecordGateDecision(r.Context(), decision.Outcome.String())
			}

			switch decision.Outcome {
			case OutcomeLoading:
				log.Debug().Str("path", r.URL.Path).Msg("session loading")
				writeLoading(w, r)
			case OutcomeRedirect:
				log.Debug().Str("path", r.URL.Path).Msg("no session, redirecting to login")
				http.Redirect(w, r, LoginURL(o.loginPath, decision.From), http.StatusFound)
			case OutcomeDenied:
				log.Info().
					Str("path", r.URL.Path).
					Str("user", decision.User.Username).
					Str("permission", string(decision.RequiredPermission)).
					Msg("access denied")
				writeDenied(w, r, decision)
			default:
				ctx := context.WithValue(r.Context(), userContextKey, decision.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// LoginURL builds the login location carrying from as the return path.
func LoginURL(loginPath, from string) string {
	if from == "" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"from": {from}}.Encode()
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	if wantsJSON(r) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"loading": true, "message": "Loading Dashboard..."})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := loadingTmpl.Execute(w, nil); err != nil {
		log.Error().Err(err).Msg("failed to render loading page")
	}
}

func writeDenied(w http.ResponseWriter, r *http.Request, d Decision) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":              "Access Denied",
			"requiredPermission": d.RequiredPermission,
			"role":               d.Role,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	if err := deniedTmpl.Execute(w, d); err != nil {
		log.Error().Err(err).Msg("failed to render access denied page")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
