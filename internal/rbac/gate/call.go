package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/expenseflow-go/internal/rbac/domain"
)

// ErrForbidden is returned when a client-initiated call is refused locally.
var ErrForbidden = errors.New("action not permitted for current role")

// Call runs fn only when the current role may apply action to resource.
func Call(c Checker, action domain.Action, resource string, fn func() error) error {
	if c == nil || !c.CanPerformAction(action, resource) {
		return fmt.Errorf("%w: %s %s", ErrForbidden, action, resource)
	}
	return fn()
}

// CallContext is Call for functions that take a context.
func CallContext(ctx context.Context, c Checker, action domain.Action, resource string, fn func(context.Context) error) error {
	return Call(c, action, resource, func() error {
		return fn(ctx)
	})
}

// Route maps a URL path prefix to the resource type it serves.
type Route struct {
	Prefix   string
	Resource string
}

// DefaultRoutes covers the REST endpoints the mobile client calls.
var DefaultRoutes = []Route{
	{Prefix: "/api/users", Resource: domain.ResourceUser},
	{Prefix: "/api/expenses", Resource: domain.ResourceExpense},
	{Prefix: "/api/bills", Resource: domain.ResourceBill},
	{Prefix: "/api/reimbursements", Resource: domain.ResourceReimbursement},
	{Prefix: "/api/teams", Resource: domain.ResourceTeam},
	{Prefix: "/api/reports", Resource: domain.ResourceReport},
	{Prefix: "/api/companies", Resource: domain.ResourceCompany},
	{Prefix: "/api/audit", Resource: domain.ResourceAudit},
}

// Transport refuses outgoing requests the current role could not perform,
// before they reach the network. Paths matching no route pass through; the
// server stays the authority either way.
type Transport struct {
	Base    http.RoundTripper
	Checker Checker
	Routes  []Route
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resource, ok := t.resourceFor(req.URL.Path)
	if !ok {
		return base.RoundTrip(req)
	}

	action := MethodToAction(req.Method)
	if t.Checker == nil || !t.Checker.CanPerformAction(action, resource) {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("%w: %s %s", ErrForbidden, req.Method, req.URL.Path)
	}
	return base.RoundTrip(req)
}

func (t *Transport) resourceFor(path string) (string, bool) {
	routes := t.Routes
	if routes == nil {
		routes = DefaultRoutes
	}

	best := -1
	for i, r := range routes {
		if !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		rest := path[len(r.Prefix):]
		if rest != "" && rest[0] != '/' {
			continue
		}
		if best < 0 || len(r.Prefix) > len(routes[best].Prefix) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return routes[best].Resource, true
}

// MethodToAction maps an HTTP method to the action it performs.
func MethodToAction(method string) domain.Action {
	switch method {
	case http.MethodPost:
		return domain.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return domain.ActionUpdate
	case http.MethodDelete:
		return domain.ActionDelete
	default:
		return domain.ActionRead
	}
}
