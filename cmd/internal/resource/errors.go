package resource

import "errors"

var (
	// ErrInvalidInput means the input failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means no live entry matches. Soft-deleted entries count as
	// not found everywhere except the raw activity log.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a live entry with the same (kind, name) exists.
	ErrConflict = errors.New("name already in use")
)
