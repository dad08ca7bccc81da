package web

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/jobdash/internal/demo"
	"github.com/wolfeidau/jobdash/internal/gate"
	jdhttp "github.com/wolfeidau/jobdash/internal/http"
	"github.com/wolfeidau/jobdash/internal/models"
)

type navItem struct {
	Path  string
	Title string
}

type demoAccount struct {
	Username string
	Password string
	Role     models.Role
}

type pageData struct {
	Title string
	Path  string
	User  *models.User
	Flash string
	Nav   []navItem

	// Login form
	Error        string
	From         string
	Username     string
	DemoAccounts []demoAccount

	// Profile form
	Saved bool
}

// WelcomeMessage is shown after a successful login.
func WelcomeMessage(u *models.User) string {
	kind := "demo account"
	if u.IsRealUser {
		kind = "registered user"
	}
	return fmt.Sprintf("Welcome %s! Logged in as %s.", u.FirstName, kind)
}

func (s *Server) nav() []navItem {
	state := s.store.State()
	items := make([]navItem, 0, len(Pages))
	for _, p := range Pages {
		if p.Permission != "" && !state.HasPermission(p.Permission) {
			continue
		}
		items = append(items, navItem{Path: p.Path, Title: p.Title})
	}
	return items
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data *pageData) {
	if data.Flash == "" {
		data.Flash = popFlash(w, r)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl[name].ExecuteTemplate(w, "layout", data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("failed to render page")
	}
}

func (s *Server) demoAccounts() []demoAccount {
	if !s.cfg.ShowDemoAccounts {
		return nil
	}

	out := make([]demoAccount, 0, len(demo.Accounts))
	for _, acct := range demo.Accounts {
		out = append(out, demoAccount{Username: acct.User.Username, Password: acct.Password, Role: acct.User.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	from := jdhttp.LocalPathOr(r.URL.Query().Get("from"), defaultLanding)

	if state := s.store.State(); state.IsAuthenticated && !state.Loading {
		http.Redirect(w, r, from, http.StatusFound)
		return
	}

	s.render(w, r, "login", http.StatusOK, &pageData{
		Title:        "Sign in",
		Path:         loginPath,
		From:         from,
		DemoAccounts: s.demoAccounts(),
	})
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	creds := models.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	from := jdhttp.LocalPathOr(r.PostFormValue("from"), defaultLanding)

	data := &pageData{
		Title:        "Sign in",
		Path:         loginPath,
		From:         from,
		Username:     creds.Username,
		DemoAccounts: s.demoAccounts(),
	}

	if msg, ok := creds.Validate(); !ok {
		data.Error = msg
		s.render(w, r, "login", http.StatusUnprocessableEntity, data)
		return
	}

	res := s.store.Login(r.Context(), creds.Username, creds.Password)

	zerolog.Ctx(r.Context()).Info().
		Str("username", creds.Username).
		Str("client_ip", jdhttp.ClientIP(r)).
		Bool("success", res.Success).
		Msg("login form submitted")

	if !res.Success {
		data.Error = res.Error
		s.render(w, r, "login", http.StatusUnauthorized, data)
		return
	}

	setFlash(w, WelcomeMessage(res.User))
	http.Redirect(w, r, from, http.StatusSeeOther)
}

func (s *Server) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	s.store.Logout(r.Context())
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (s *Server) dashboardPage(p Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := gate.UserFromContext(r.Context())
		s.render(w, r, "page", http.StatusOK, &pageData{
			Title: p.Title,
			Path:  p.Path,
			User:  user,
			Nav:   s.nav(),
		})
	}
}

func (s *Server) profilePage(w http.ResponseWriter, r *http.Request) {
	user, _ := gate.UserFromContext(r.Context())
	s.render(w, r, "profile", http.StatusOK, &pageData{
		Title: "Profile",
		Path:  "/profile",
		User:  user,
		Nav:   s.nav(),
		Saved: r.URL.Query().Get("saved") == "1",
	})
}

func (s *Server) profileSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	var patch models.UserPatch
	for field, dst := range map[string]**string{
		"firstName": &patch.FirstName,
		"lastName":  &patch.LastName,
		"email":     &patch.Email,
	} {
		if _, ok := r.PostForm[field]; ok {
			v := strings.TrimSpace(r.PostFormValue(field))
			*dst = &v
		}
	}

	if err := s.store.UpdateUser(r.Context(), patch); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("profile update failed")
		http.Error(w, "profile update failed", http.StatusConflict)
		return
	}

	http.Redirect(w, r, "/profile?saved=1", http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// popFlash returns the pending flash message and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}
