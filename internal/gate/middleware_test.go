package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/jobdash/internal/auth"
	"github.com/wolfeidau/jobdash/internal/demo"
	"github.com/wolfeidau/jobdash/internal/kv/memory"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/session"
	"github.com/wolfeidau/jobdash/internal/telemetry"
)

type staticSource session.State

func (s staticSource) State() session.State {
	return session.State(s)
}

func serve(t *testing.T, source Source, required auth.Permission, r *http.Request, opts ...Option) (*httptest.ResponseRecorder, bool, *models.User) {
	t.Helper()

	var called bool
	var user *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("content"))
	})

	w := httptest.NewRecorder()
	Require(source, required, opts...)(next).ServeHTTP(w, r)
	return w, called, user
}

func TestRequire_Loading(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w, called, _ := serve(t, staticSource{Loading: true}, "", r)

	require.False(t, called)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), "Loading Dashboard...")
	require.Empty(t, w.Header().Get("Location"))
}

func TestRequire_LoadingJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Accept", "application/json")
	w, _, _ := serve(t, staticSource{Loading: true}, "", r)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.JSONEq(t, `{"loading":true,"message":"Loading Dashboard..."}`, w.Body.String())
}

func TestRequire_RedirectsAnonymous(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/batch-performance?range=7d", nil)
	w, called, _ := serve(t, staticSource{}, "", r)

	require.False(t, called)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login?from=%2Fbatch-performance%3Frange%3D7d", w.Header().Get("Location"))
}

func TestRequire_CustomLoginPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w, _, _ := serve(t, staticSource{}, "", r, WithLoginPath("/signin"))

	require.Equal(t, "/signin?from=%2Fdashboard", w.Header().Get("Location"))
}

func TestRequire_DeniedHTML(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/customers", nil)
	w, called, _ := serve(t, staticSource{User: viewer, IsAuthenticated: true}, auth.PermWrite, r)

	require.False(t, called)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "Access Denied")
	require.Contains(t, body, "Required permission: <strong>write</strong>")
	require.Contains(t, body, "Your role: <strong>viewer</strong>")
}

func TestRequire_DeniedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/customers", nil)
	r.Header.Set("Accept", "application/json")
	w, _, _ := serve(t, staticSource{User: viewer, IsAuthenticated: true}, auth.PermWrite, r)

	require.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "write", body["requiredPermission"])
	require.Equal(t, "viewer", body["role"])
}

func TestRequire_DeniedEscapesRole(t *testing.T) {
	odd := &models.User{Username: "x", Role: "<script>"}
	r := httptest.NewRequest(http.MethodGet, "/customers", nil)
	w, _, _ := serve(t, staticSource{User: odd, IsAuthenticated: true}, auth.PermWrite, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.NotContains(t, w.Body.String(), "<script>")
}

func TestRequire_Allows(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/customers", nil)
	w, called, user := serve(t, staticSource{User: admin, IsAuthenticated: true}, auth.PermWrite, r,
		WithMetrics(telemetry.GetMetrics()))

	require.True(t, called)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "content", w.Body.String())
	require.Equal(t, admin, user)
}

func TestRequire_WithSessionStore(t *testing.T) {
	ctx := context.Background()
	store := session.New(memory.NewStore(), nil, demo.NewDirectory(demo.WithDelay(0)))

	handler := func() (*httptest.ResponseRecorder, bool) {
		r := httptest.NewRequest(http.MethodGet, "/customers", nil)
		w, called, _ := serve(t, store, auth.PermWrite, r)
		return w, called
	}

	// Before restore the session is still loading
	w, _ := handler()
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	store.Restore(ctx)
	w, _ = handler()
	require.Equal(t, http.StatusFound, w.Code)

	require.True(t, store.Login(ctx, "viewer", "viewer123").Success)
	w, _ = handler()
	require.Equal(t, http.StatusForbidden, w.Code)

	require.True(t, store.Login(ctx, "manager", "manager123").Success)
	w, called := handler()
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, called)
}

func TestUserFromContext_Missing(t *testing.T) {
	user, ok := UserFromContext(context.Background())
	require.False(t, ok)
	require.Nil(t, user)
}

func TestLoginURL(t *testing.T) {
	require.Equal(t, "/login", LoginURL("/login", ""))
	require.Equal(t, "/login?from=%2Fdashboard", LoginURL("/login", "/dashboard"))
}
