// Package web serves the dashboard shell: the login page, the protected
// dashboard views behind the access gate and a JSON session API.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/jobdash/internal/auth"
	"github.com/wolfeidau/jobdash/internal/gate"
	jdhttp "github.com/wolfeidau/jobdash/internal/http"
	"github.com/wolfeidau/jobdash/internal/logger"
	"github.com/wolfeidau/jobdash/internal/session"
	"github.com/wolfeidau/jobdash/internal/telemetry"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	loginPath       = "/login"
	defaultLanding  = "/dashboard"
	flashCookieName = "jobdash_flash"
)

// Page is a protected dashboard view.
type Page struct {
	Path       string
	Title      string
	Permission auth.Permission
}

// Pages lists the dashboard views in navigation order.
var Pages = []Page{
	{Path: "/dashboard", Title: "Dashboard"},
	{Path: "/batch-performance", Title: "Batch Performance"},
	{Path: "/volumetrics", Title: "Volumetrics"},
	{Path: "/sla-tracking", Title: "SLA Tracking"},
	{Path: "/batch-schedule", Title: "Batch Schedule"},
	{Path: "/smart-predictor", Title: "Smart Predictor"},
	{Path: "/client-inventory", Title: "Client Inventory"},
	{Path: "/customers", Title: "Customers", Permission: auth.PermWrite},
	{Path: "/profile", Title: "Profile"},
	{Path: "/settings", Title: "Settings"},
	{Path: "/notifications", Title: "Notifications"},
}

// Config holds the server options.
type Config struct {
	// CORSOrigins are allowed to call the session API from a browser.
	CORSOrigins       []string
	// ShowDemoAccounts lists the demo credentials on the login page.
	ShowDemoAccounts  bool
	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	TrustProxyHeaders bool
	Logger            zerolog.Logger
	Metrics           *telemetry.Metrics
}

// Server renders the dashboard for a single session store.
type Server struct {
	store *session.Store
	cfg   Config
	tmpl  map[string]*template.Template
}

// NewServer parses the templates and returns a Server.
func NewServer(store *session.Store, cfg Config) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Server{store: store, cfg: cfg, tmpl: tmpl}, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"join": strings.Join,
	}

	out := map[string]*template.Template{}
	for _, name := range []string{"login", "page", "profile"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// Handler builds the router. HTML routes get cross-origin request
// protection, API routes get CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(jdhttp.ClientIPMiddleware(s.cfg.TrustProxyHeaders))
	r.Use(logger.Requests(s.cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/session", func(r chi.Router) {
		r.Use(withCORS(s.cfg.CORSOrigins))
		r.Get("/", s.getSession)
		r.Post("/login", s.apiLogin)
		r.Post("/logout", s.apiLogout)
		r.Patch("/user", s.patchUser)
	})

	protection := csrf.New()
	r.Group(func(r chi.Router) {
		r.Use(protection.Handler)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, defaultLanding, http.StatusFound)
		})
		r.Get(loginPath, s.loginPage)
		r.Post(loginPath, s.loginSubmit)
		r.Post("/logout", s.logoutSubmit)

		gateOpts := []gate.Option{gate.WithLoginPath(loginPath)}
		if s.cfg.Metrics != nil {
			gateOpts = append(gateOpts, gate.WithMetrics(s.cfg.Metrics))
		}

		for _, p := range Pages {
			guarded := r.With(gate.Require(s.store, p.Permission, gateOpts...))
			switch p.Path {
			case "/profile":
				guarded.Get(p.Path, s.profilePage)
				guarded.Post(p.Path, s.profileSubmit)
			default:
				guarded.Get(p.Path, s.dashboardPage(p))
			}
		}
	})

	return r
}

func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowedHeaders:   []string{"Content-Type", "Accept", logger.RequestIDHeader},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: true,
	}).Handler
}
