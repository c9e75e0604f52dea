// Package gate picks between two pre-built values, a child and a fallback,
// based on a policy decision for the current role. It is the render-time
// filter screens wrap around anything role-dependent; T is whatever the view
// layer renders.
package gate

import (
	"slices"

	"github.com/expenseflow-go/internal/rbac/domain"
)

// Checker answers policy questions for the current role. policy.Access and
// store.Store both satisfy it.
type Checker interface {
	Role() domain.Role
	HasPermission(permission string) bool
	CanPerformAction(action domain.Action, resource string) bool
	IsAtLeast(minRole domain.Role) bool
}

// Permission renders Child when the role holds Name.
type Permission[T any] struct {
	Name     string
	Child    T
	Fallback T
}

func (g Permission[T]) Render(c Checker) T {
	if c != nil && c.HasPermission(g.Name) {
		return g.Child
	}
	return g.Fallback
}

// Action renders Child when the role may apply Action to Resource.
type Action[T any] struct {
	Action   domain.Action
	Resource string
	Child    T
	Fallback T
}

func (g Action[T]) Render(c Checker) T {
	if c != nil && c.CanPerformAction(g.Action, g.Resource) {
		return g.Child
	}
	return g.Fallback
}

// Role renders Child when the role meets MinRole (if set) and is one of
// AllowedRoles (if non-empty). Both conditions must hold.
type Role[T any] struct {
	MinRole      domain.Role
	AllowedRoles []domain.Role
	Child        T
	Fallback     T
}

func (g Role[T]) Render(c Checker) T {
	if g.Allows(c) {
		return g.Child
	}
	return g.Fallback
}

// Allows reports the decision Render acts on.
func (g Role[T]) Allows(c Checker) bool {
	if c == nil {
		return false
	}
	if g.MinRole != domain.RoleNone && !c.IsAtLeast(g.MinRole) {
		return false
	}
	if len(g.AllowedRoles) > 0 {
		current := c.Role()
		if current == domain.RoleNone || !slices.Contains(g.AllowedRoles, current) {
			return false
		}
	}
	return true
}
