package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")

	// Field-specific uniqueness violations surfaced so handlers can build
	// per-field validation errors even when a constraint trips under a race.
	ErrEmailTaken    = errors.New("email already in use")
	ErrUIDTaken      = errors.New("uid already in use")
	ErrUsernameTaken = errors.New("username already in use")
)
