package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/wolfeidau/jobdash/internal/models"
)

const minPasswordLength = 6

// AccountRequest asks an administrator to create a new account.
type AccountRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// PendingRequest is an account request awaiting approval.
type PendingRequest struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	RequestedRole string `json:"requested_role"`
	Status        string `json:"status"`
	RequestedAt   string `json:"requested_at"`
}

// RegistrationError carries the per field problems reported for an account request.
type RegistrationError struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func (e *RegistrationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}

	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Errors[f]))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

var validRoles = []string{string(models.RoleViewer), string(models.RoleManager), string(models.RoleAdmin)}

// Validate applies the same checks the service does before a request is accepted.
func (r AccountRequest) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"username", r.Username},
		{"password", r.Password},
		{"email", r.Email},
		{"firstName", r.FirstName},
		{"lastName", r.LastName},
		{"role", r.Role},
	}

	missing := map[string]string{}
	for _, f := range required {
		if f.value == "" {
			missing[f.name] = f.name + " is required"
		}
	}
	if len(missing) > 0 {
		return &RegistrationError{Message: "Missing required fields", Errors: missing}
	}

	if len(r.Password) < minPasswordLength {
		return &RegistrationError{
			Message: "Account request failed",
			Errors:  map[string]string{"password": fmt.Sprintf("Password must be at least %d characters", minPasswordLength)},
		}
	}

	if !slices.Contains(validRoles, r.Role) {
		return &RegistrationError{
			Message: "Account request failed",
			Errors:  map[string]string{"role": "Role must be one of: " + strings.Join(validRoles, ", ")},
		}
	}

	return nil
}

type registerResponse struct {
	Message string            `json:"message"`
	Request *PendingRequest   `json:"request"`
	Errors  map[string]string `json:"errors"`
	Error   string            `json:"error"`
}

// Register submits an account request. Validation failures, local or from
// the service, are returned as *RegistrationError.
func (c *Client) Register(ctx context.Context, req AccountRequest) (*PendingRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, registerPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out registerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("register: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		if out.Request == nil {
			return nil, fmt.Errorf("register response missing request")
		}
		return out.Request, nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &RegistrationError{Message: out.Message, Errors: out.Errors}
	default:
		msg := out.Message
		if out.Error != "" {
			msg = msg + ": " + out.Error
		}
		return nil, fmt.Errorf("register: %w: %d %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	}
}
