// Package common defines shared constants and sentinel errors used across
// the registry core, its façade and the transport. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Owner/ACL check failed, or a session key is already occupied.
	ErrNotAuthorized = errors.New("NotAuthorized")

	// Registration errors.
	ErrUserExists   = errors.New("UserExists")
	ErrUserNotFound = errors.New("UserNotFound")

	// Session lifecycle errors.
	ErrSessionExpired  = errors.New("SessionExpired")
	ErrSessionNotFound = errors.New("SessionNotFound")

	// Façade errors.
	ErrAlreadyInstantiated = errors.New("already instantiated")
	ErrNotInstantiated     = errors.New("not instantiated")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidRequest      = errors.New("invalid request")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
