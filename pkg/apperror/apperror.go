package apperror

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("unavailable")
	// ErrRolledBack marks a transaction that was rolled back without a reported cause.
	ErrRolledBack = errors.New("transaction rolled back")
)
