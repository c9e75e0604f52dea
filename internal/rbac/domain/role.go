package domain

// Role is a privilege tier assigned to a user. The zero value RoleNone means
// no role is known and every check against it is denied.
type Role string

const (
	RoleNone       Role = ""
	RoleEmployee   Role = "EMPLOYEE"
	RoleUser       Role = "USER" // synonym of RoleEmployee
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var levels = map[Role]int{
	RoleEmployee:   0,
	RoleUser:       0,
	RoleManager:    1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// AllRoles returns the closed role set ordered by hierarchy level.
func AllRoles() []Role {
	return []Role{RoleEmployee, RoleUser, RoleManager, RoleAdmin, RoleSuperAdmin}
}

// ParseRole maps a stored or transmitted role string to a Role. Matching is
// exact and case-sensitive; anything unrecognised becomes RoleNone.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := levels[r]; ok {
		return r
	}
	return RoleNone
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// LevelOf returns the hierarchy level of role. Unknown and unset roles sit
// below every real role at -1.
func LevelOf(role Role) int {
	if lvl, ok := levels[role]; ok {
		return lvl
	}
	return -1
}
