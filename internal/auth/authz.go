package auth

import (
	"github.com/wolfeidau/jobdash/internal/models"
)

// Permission represents an authorized action on the dashboard.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
	PermAdmin  Permission = "admin"
)

// RolePermissions is the default permission grant per role. The login API
// and the demo directory both hand these out; checks never consult it.
var RolePermissions = map[models.Role][]Permission{
	models.RoleAdmin:   {PermRead, PermWrite, PermDelete, PermAdmin},
	models.RoleManager: {PermRead, PermWrite},
	models.RoleViewer:  {PermRead},
}

// PermissionsFor returns the default permission set for a role.
func PermissionsFor(role models.Role) models.PermissionSet {
	perms := RolePermissions[role]
	tags := make([]string, 0, len(perms))
	for _, p := range perms {
		tags = append(tags, string(p))
	}
	return models.NewPermissionSet(tags...)
}

// HasPermission checks if a user may perform perm. The first matching rule wins:
//
//  1. admins may do anything
//  2. an explicitly granted permission
//  3. "read" (or no permission at all) only requires being authenticated
//
// Everything else is denied.
func HasPermission(user *models.User, authenticated bool, perm Permission) bool {
	if user.IsAdmin() {
		return true
	}

	if user != nil && user.Permissions.Contains(string(perm)) {
		return true
	}

	if perm == PermRead || perm == "" {
		return authenticated
	}

	return false
}
