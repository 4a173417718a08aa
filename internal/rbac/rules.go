package rbac

// Role names as they appear in JWT claims and the users table.
const (
	RoleCandidate  = "candidate"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleCandidate: {
		"exam:view",
		"exam:list",
		"submission:start",
		"submission:draft",
		"submission:finalize",
		"submission:view-own",
		"submission:list-own",
	},
	RoleAdmin: {
		"*", // everything
	},
	RoleSuperAdmin: {
		"*",
	},
}

// IsAdmin reports whether the role carries admin capability. Admin and
// superadmin are equivalent for every submission operation; superadmin-only
// surfaces (global purge, broadcast) live outside this module.
func IsAdmin(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
