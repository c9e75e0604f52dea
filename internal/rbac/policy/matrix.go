package policy

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/expenseflow-go/internal/rbac/domain"
)

// matrixModel is RBAC with deny-override: a request passes when some policy
// allows it and none denies it. USER inherits EMPLOYEE through g.
const matrixModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

const (
	allow    = "allow"
	deny     = "deny"
	wildcard = "*"
)

func rule(role domain.Role, resource string, action string, effect string) []string {
	return []string{string(role), resource, action, effect}
}

func crud(role domain.Role, resource string, actions ...domain.Action) [][]string {
	rules := make([][]string, 0, len(actions))
	for _, a := range actions {
		rules = append(rules, rule(role, resource, string(a), allow))
	}
	return rules
}

func matrixPolicies() [][]string {
	var rules [][]string

	rules = append(rules,
		rule(domain.RoleSuperAdmin, wildcard, wildcard, allow),
		rule(domain.RoleAdmin, wildcard, wildcard, allow),
		// Only SUPER_ADMIN deletes users.
		rule(domain.RoleAdmin, domain.ResourceUser, string(domain.ActionDelete), deny),
	)

	cru := []domain.Action{domain.ActionCreate, domain.ActionRead, domain.ActionUpdate}

	rules = append(rules, crud(domain.RoleManager, domain.ResourceExpense, cru...)...)
	rules = append(rules, crud(domain.RoleManager, domain.ResourceReimbursement, cru...)...)
	rules = append(rules, crud(domain.RoleManager, domain.ResourceTeam, domain.ActionRead)...)
	rules = append(rules, crud(domain.RoleManager, domain.ResourceReport, domain.ActionRead)...)

	rules = append(rules, crud(domain.RoleEmployee, domain.ResourceExpense, cru...)...)
	rules = append(rules, crud(domain.RoleEmployee, domain.ResourceBill, cru...)...)
	rules = append(rules, crud(domain.RoleEmployee, domain.ResourceReimbursement, domain.ActionCreate, domain.ActionRead)...)

	return rules
}

func matrixGroupings() [][]string {
	return [][]string{
		{string(domain.RoleUser), string(domain.RoleEmployee)},
	}
}

func newMatrixEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(matrixModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse action matrix model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	if _, err := e.AddPolicies(matrixPolicies()); err != nil {
		return nil, fmt.Errorf("failed to add action policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(matrixGroupings()); err != nil {
		return nil, fmt.Errorf("failed to add role groupings: %w", err)
	}

	return e, nil
}
