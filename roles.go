package auth

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole returns the role and whether it is one we know about.
func ParseRole(s string) (UserRole, bool) {
	if IsValidRole(s) {
		return s, true
	}
	return "", false
}

// RoleIsAtLeast checks if the role meets the minimum required level
func RoleIsAtLeast(r, minRole UserRole) bool {
	hierarchy := map[UserRole]int{
		RoleUser:    0,
		RoleManager: 1,
		RoleAdmin:   2,
	}

	level, ok := hierarchy[r]
	if !ok {
		return false
	}

	minLevel, ok := hierarchy[minRole]
	if !ok {
		return false
	}

	return level >= minLevel
}
