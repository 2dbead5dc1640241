package auth

import "strings"

// InferRole maps an email address to a fallback role when no stored profile
// exists. First match wins. This is a heuristic only: stored profiles always
// take precedence, and the same rule seeds demo accounts.
func InferRole(email string) Role {
	if email == "" {
		return RoleOperator
	}

	switch {
	case strings.Contains(email, "admin"):
		return RoleAdmin
	case strings.Contains(email, "sales"):
		return RoleSalesAgent
	case strings.Contains(email, "ops"), strings.Contains(email, "manager"):
		return RoleOperationsManager
	default:
		return RoleOperator
	}
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSalesAgent, RoleOperationsManager, RoleOperator:
		return true
	default:
		return false
	}
}

// AllRoles returns the closed role set
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleSalesAgent,
		RoleOperationsManager,
		RoleOperator,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}
