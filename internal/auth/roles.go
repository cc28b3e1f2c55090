package auth

// Role represents a user profession.
type Role string

const (
	RoleScientist Role = "scientist"
	RoleEngineer  Role = "engineer"
	RoleAdmin     Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleScientist, RoleEngineer, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleScientist:
		return 1
	case RoleEngineer:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
