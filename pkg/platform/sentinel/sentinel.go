// Package sentinel holds infrastructure facts returned by stores, optionally
// wrapped. Services translate them into domain errors; validation failures
// use pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the requested principal, checkpoint, approach or snapshot.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a unique key (principal id, checkpoint id) is already taken.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the row exists but its state forbids the change, such as closing a closed checkpoint.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotMember: the acting principal is not among the resource's participants.
	ErrNotMember = errors.New("not a member")
	// ErrUnavailable: the store is held by a backup or restore, or cannot be reached.
	ErrUnavailable = errors.New("unavailable")
)
