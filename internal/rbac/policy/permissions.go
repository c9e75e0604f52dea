package policy

import "strings"

// superPrefix is the namespace reserved for SUPER_ADMIN. ADMIN holds every
// permission outside it.
const superPrefix = "SUPER_"

// Allow-lists are matched with exact-or-prefix semantics. Entries ending in
// "_" are namespaces; the rest behave as exact names in practice. Keep them as
// written: changing an entry widens or narrows access.
var managerPermissions = []string{
	"EXPENSE_",
	"TEAM_",
	"REIMBURSEMENT_",
	"VIEW_REPORTS",
	"APPROVE_EXPENSES",
	"VIEW_TEAM_DATA",
	"MANAGE_OWN_EXPENSES",
	"UPLOAD_BILLS",
	"VIEW_OWN_DATA",
	"REQUEST_REIMBURSEMENT",
}

var employeePermissions = []string{
	"OWN_EXPENSE_",
	"VIEW_OWN_DATA",
	"SUBMIT_EXPENSE",
	"UPLOAD_BILL",
	"REQUEST_REIMBURSEMENT",
	"MANAGE_OWN_EXPENSES",
	"UPLOAD_BILLS",
}

// matchesAny reports whether name equals, or begins with, one of entries.
// No case folding, trimming or wildcards.
func matchesAny(name string, entries []string) bool {
	for _, entry := range entries {
		if name == entry || strings.HasPrefix(name, entry) {
			return true
		}
	}
	return false
}

// ManagerPermissions returns a copy of the manager allow-list.
func ManagerPermissions() []string {
	return append([]string(nil), managerPermissions...)
}

// EmployeePermissions returns a copy of the employee allow-list.
func EmployeePermissions() []string {
	return append([]string(nil), employeePermissions...)
}
