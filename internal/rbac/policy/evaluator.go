// Package policy decides what a role may do. Every check is a pure function
// of its arguments: absent or unknown roles are denied, nothing panics, and the
// role store is never consulted.
package policy

import (
	"strings"

	"github.com/casbin/casbin/v2"

	"github.com/expenseflow-go/internal/rbac/domain"
	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/metrics"
)

const (
	checkPermission = "permission"
	checkAction     = "action"
	checkRole       = "role"
)

// Evaluator holds the immutable permission tables and the action matrix. It
// is safe for concurrent use.
type Evaluator struct {
	matrix *casbin.SyncedEnforcer
	logger logger.Logger
}

// NewEvaluator builds the action matrix enforcer.
func NewEvaluator(log logger.Logger) (*Evaluator, error) {
	if log == nil {
		log = logger.NewNop()
	}

	matrix, err := newMatrixEnforcer()
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		matrix: matrix,
		logger: log,
	}, nil
}

// HasPermission reports whether role holds the named permission.
func (e *Evaluator) HasPermission(role domain.Role, permission string) bool {
	allowed := hasPermission(role, permission)
	metrics.RecordDecision(checkPermission, allowed)
	return allowed
}

func hasPermission(role domain.Role, permission string) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return !strings.HasPrefix(permission, superPrefix)
	case domain.RoleManager:
		return matchesAny(permission, managerPermissions)
	case domain.RoleEmployee, domain.RoleUser:
		return matchesAny(permission, employeePermissions)
	default:
		return false
	}
}

// CanPerformAction reports whether role may apply action to resources of the
// given type.
func (e *Evaluator) CanPerformAction(role domain.Role, action domain.Action, resource string) bool {
	allowed := e.canPerformAction(role, action, resource)
	metrics.RecordDecision(checkAction, allowed)
	return allowed
}

func (e *Evaluator) canPerformAction(role domain.Role, action domain.Action, resource string) bool {
	if !role.Valid() || e == nil || e.matrix == nil {
		return false
	}

	allowed, err := e.matrix.Enforce(string(role), resource, string(action))
	if err != nil {
		e.logger.Error("Failed to evaluate action", "error", err, "role", role, "action", action, "resource", resource)
		return false
	}

	e.logger.Debug("Action check", "role", role, "action", action, "resource", resource, "allowed", allowed)
	return allowed
}

// IsAtLeast reports whether role sits at or above minRole in the hierarchy.
// An unset role never qualifies, whatever minRole is.
func (e *Evaluator) IsAtLeast(role domain.Role, minRole domain.Role) bool {
	allowed := isAtLeast(role, minRole)
	metrics.RecordDecision(checkRole, allowed)
	return allowed
}

func isAtLeast(role domain.Role, minRole domain.Role) bool {
	if !role.Valid() {
		return false
	}
	return domain.LevelOf(role) >= domain.LevelOf(minRole)
}

// For binds the evaluator to role.
func (e *Evaluator) For(role domain.Role) Access {
	return Access{role: role, eval: e}
}
