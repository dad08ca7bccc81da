package models

import (
	"encoding/json"
	"slices"
	"strings"
)

// Role is the closed set of dashboard roles. Only RoleAdmin changes the
// outcome of a permission check; the rest are informational.
type Role string

const (
	RoleUnknown Role = ""
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// ParseRole maps a role string onto the closed set. Unrecognised values
// return RoleUnknown and false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleViewer:
		return RoleViewer, true
	default:
		return RoleUnknown, false
	}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// PermissionSet is an ordered set of permission tags. It serializes as a
// JSON array and drops duplicates on decode.
type PermissionSet []string

// NewPermissionSet builds a set from the given tags, keeping first occurrence order.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, 0, len(perms))
	for _, p := range perms {
		if !slices.Contains(set, p) {
			set = append(set, p)
		}
	}
	return set
}

// Contains reports whether perm is in the set.
func (s PermissionSet) Contains(perm string) bool {
	return slices.Contains(s, perm)
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewPermissionSet(raw...)
	return nil
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// User is the authenticated dashboard user. The JSON form is what gets
// persisted under the "user" storage key and what the login API returns.
type User struct {
	ID          int64         `json:"id"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
	IsRealUser  bool          `json:"isRealUser"`
}

// IsAdmin returns true if the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName returns "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Permissions = slices.Clone(u.Permissions)
	return &clone
}

// UserPatch carries a partial update to a User. Nil fields are left untouched.
type UserPatch struct {
	Username    *string   `json:"username,omitempty"`
	Email       *string   `json:"email,omitempty"`
	FirstName   *string   `json:"firstName,omitempty"`
	LastName    *string   `json:"lastName,omitempty"`
	Role        *Role     `json:"role,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
	IsRealUser  *bool     `json:"isRealUser,omitempty"`
}

// IsEmpty returns true if the patch sets no fields.
func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && p.FirstName == nil &&
		p.LastName == nil && p.Role == nil && p.Permissions == nil && p.IsRealUser == nil
}

// Apply returns a copy of u with the patch merged in (shallow merge).
func (p UserPatch) Apply(u *User) *User {
	out := u.Clone()
	if p.Username != nil {
		out.Username = *p.Username
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		out.LastName = *p.LastName
	}
	if p.Role != nil {
		out.Role = *p.Role
	}
	if p.Permissions != nil {
		out.Permissions = NewPermissionSet(*p.Permissions...)
	}
	if p.IsRealUser != nil {
		out.IsRealUser = *p.IsRealUser
	}
	return out
}
