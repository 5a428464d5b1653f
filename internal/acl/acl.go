// Package acl is the port through which the registry asks an external
// access-control service whether a principal may perform an owner action.
package acl

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Deny.
var ErrNotConfigured = errors.New("acl: no access-control service configured")

// Checker answers authorization queries for a delegated owner. It must not
// mutate registry state.
type Checker interface {
	IsAllowed(ctx context.Context, acl, principal, action string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, acl, principal, action string) (bool, error)

func (f CheckerFunc) IsAllowed(ctx context.Context, acl, principal, action string) (bool, error) {
	return f(ctx, acl, principal, action)
}

// Deny is the checker used when no ACL backend is configured.
type Deny struct{}

func (Deny) IsAllowed(context.Context, string, string, string) (bool, error) {
	return false, ErrNotConfigured
}
