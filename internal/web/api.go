package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/jobdash/internal/models"
	"github.com/wolfeidau/jobdash/internal/session"
)

const maxRequestBody = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// profileUpdate is the subset of a user the session owner may change.
// Role, permissions and the account kind are not editable here.
type profileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
}

func (p profileUpdate) patch() models.UserPatch {
	return models.UserPatch{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.store.State())
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg, ok := creds.Validate(); !ok {
		writeJSON(w, r, http.StatusBadRequest, session.Result{Error: msg})
		return
	}

	res := s.store.Login(r.Context(), creds.Username, creds.Password)
	if !res.Success {
		writeJSON(w, r, http.StatusUnauthorized, res)
		return
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	s.store.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request) {
	var update profileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := update.patch()
	if patch.IsEmpty() {
		writeError(w, r, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := s.store.UpdateUser(r.Context(), patch); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeError(w, r, http.StatusConflict, "no active session")
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to update user")
		writeError(w, r, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, r, http.StatusOK, s.store.State())
}
