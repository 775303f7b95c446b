package domain

import "errors"

var (
	ErrNotFound          = errors.New("session not found")
	ErrDuplicateID       = errors.New("duplicate session id")
	ErrInvalidState      = errors.New("invalid session state")
	ErrCycle             = errors.New("session hierarchy cycle")
	ErrNoParent          = errors.New("session has no parent")
	ErrBoundaryViolation = errors.New("boundary expansion bypasses negotiation")
	ErrStore             = errors.New("session store failure")
)
