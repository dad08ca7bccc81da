package models

import "strings"

// Credentials are the transient username and password entered at login.
// They are never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the fields the login form requires. The returned message
// is suitable for display.
func (c Credentials) Validate() (string, bool) {
	if strings.TrimSpace(c.Username) == "" {
		return "Username is required", false
	}
	if c.Password == "" {
		return "Password is required", false
	}
	return "", true
}

// AuthResult is what an identity source returns for accepted credentials.
// User.IsRealUser records whether the source was the remote service.
type AuthResult struct {
	User  *User
	Token string
}
