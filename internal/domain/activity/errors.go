package activity

import "errors"

var (
	// ErrInvalidInput indicates an entry that cannot be logged.
	ErrInvalidInput = errors.New("invalid activity input")
)
