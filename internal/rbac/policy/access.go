package policy

import "github.com/expenseflow-go/internal/rbac/domain"

// Access is an evaluator bound to one role. The zero value denies everything.
type Access struct {
	role domain.Role
	eval *Evaluator
}

// Role returns the bound role, RoleNone when unset.
func (a Access) Role() domain.Role {
	return a.role
}

func (a Access) HasPermission(permission string) bool {
	if a.eval == nil {
		return false
	}
	return a.eval.HasPermission(a.role, permission)
}

func (a Access) CanPerformAction(action domain.Action, resource string) bool {
	if a.eval == nil {
		return false
	}
	return a.eval.CanPerformAction(a.role, action, resource)
}

func (a Access) IsAtLeast(minRole domain.Role) bool {
	if a.eval == nil {
		return false
	}
	return a.eval.IsAtLeast(a.role, minRole)
}

// IsEmployee is true for both EMPLOYEE and its synonym USER.
func (a Access) IsEmployee() bool {
	return a.role == domain.RoleEmployee || a.role == domain.RoleUser
}

func (a Access) IsManager() bool {
	return a.role == domain.RoleManager
}

func (a Access) IsAdmin() bool {
	return a.role == domain.RoleAdmin
}

func (a Access) IsSuperAdmin() bool {
	return a.role == domain.RoleSuperAdmin
}
