package auth

// Role is the identity provider role carried in the token.
type Role string

const (
	// RoleAuthenticated is a signed-in end user.
	RoleAuthenticated Role = "authenticated"
	// RoleService is a backend service acting on behalf of a user.
	RoleService Role = "service_role"
	// RoleAnon is an anonymous visitor; it never reaches owner-scoped data.
	RoleAnon Role = "anon"
)

// NormalizeRole validates and normalizes a role string.
// An empty role is treated as authenticated.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case "":
		return RoleAuthenticated, true
	case RoleAuthenticated, RoleService, RoleAnon:
		return Role(value), true
	default:
		return "", false
	}
}

// CanAccessDevices reports whether role may act on owner-scoped data.
func CanAccessDevices(role Role) bool {
	return role == RoleAuthenticated || role == RoleService
}
