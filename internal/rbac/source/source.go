// Package source fetches the signed-in user's role from the server, the
// authority the client falls back to when nothing is stored locally.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/expenseflow-go/internal/rbac/domain"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status from role endpoint")
	ErrMalformedResponse = errors.New("malformed role response")
	ErrMissingCredential = errors.New("missing credential")
)

// RoleSource returns the role the server currently assigns to the holder of
// token.
type RoleSource interface {
	FetchRole(ctx context.Context, token string) (domain.Role, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("role endpoint returned status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
