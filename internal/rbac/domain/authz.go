package domain

// Action is a CRUD verb checked against a resource type.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ParseAction returns the Action for s and whether it is recognised.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return a, true
	default:
		return "", false
	}
}

// Resource types the screens gate on. The set is open: any string may be
// passed to a check and unknown ones are denied for non-privileged roles.
const (
	ResourceUser          = "user"
	ResourceExpense       = "expense"
	ResourceBill          = "bill"
	ResourceReimbursement = "reimbursement"
	ResourceTeam          = "team"
	ResourceReport        = "report"
	ResourceCompany       = "company"
	ResourceAudit         = "audit"
)

// Permission names referenced by the client. There is no registry; these are
// the names in use, not a whitelist.
const (
	PermApproveExpenses      = "APPROVE_EXPENSES"
	PermViewReports          = "VIEW_REPORTS"
	PermViewTeamData         = "VIEW_TEAM_DATA"
	PermManageOwnExpenses    = "MANAGE_OWN_EXPENSES"
	PermUploadBills          = "UPLOAD_BILLS"
	PermUploadBill           = "UPLOAD_BILL"
	PermViewOwnData          = "VIEW_OWN_DATA"
	PermRequestReimbursement = "REQUEST_REIMBURSEMENT"
	PermSubmitExpense        = "SUBMIT_EXPENSE"
	PermManageUsers          = "MANAGE_USERS"
	PermManageRoles          = "MANAGE_ROLES"
	PermViewAuditLogs        = "VIEW_AUDIT_LOGS"
	PermSuperDeleteCompany   = "SUPER_DELETE_COMPANY"
	PermSuperManageCompanies = "SUPER_MANAGE_COMPANIES"
)
