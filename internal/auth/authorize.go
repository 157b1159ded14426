package auth

import "strings"

// PermissionAll is the wildcard permission; a role holding it satisfies every
// authorization check.
const PermissionAll = "*"

// Allowed reports whether a principal with the given role-name and permission
// snapshots satisfies the required role. It is a pure function over the
// snapshot taken at token issuance; absent or empty snapshots deny.
func Allowed(roleNames, permissions []string, required string) bool {
	required = strings.TrimSpace(strings.ToLower(required))
	if required == "" {
		return false
	}
	for _, p := range permissions {
		if p == PermissionAll {
			return true
		}
	}
	for _, name := range roleNames {
		if strings.TrimSpace(strings.ToLower(name)) == required {
			return true
		}
	}
	return false
}

// Authorize evaluates a role set against a required role name. Denies unless
// some role matches by name or holds the wildcard permission.
func Authorize(roles []Role, required string) bool {
	if len(roles) == 0 {
		return false
	}
	return Allowed(RoleNames(roles), permissionUnion(roles), required)
}
