package register

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r AccountRole) bool {
	switch r {
	case RoleOrdinaryUser, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleAtLeast checks if a role meets the minimum required level
func RoleAtLeast(r, minRole AccountRole) bool {
	roleHierarchy := map[AccountRole]int{
		RoleOrdinaryUser: 0,
		RoleManager:      1,
		RoleAdmin:        2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AllRoles returns the predefined roles in hierarchical order
func AllRoles() []AccountRole {
	return []AccountRole{
		RoleOrdinaryUser,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, IsValidRole(role)
}
