package session

import "errors"

var (
	// ErrIdentityNotFound means no admission ticket could be resolved for
	// an identifier within the query bound. It aborts the enclosing
	// all-or-nothing operation.
	ErrIdentityNotFound = errors.New("no admission ticket found for identity")

	// ErrInvalidInput marks empty required fields, rejected before any
	// network or engine call.
	ErrInvalidInput = errors.New("invalid input")
)
