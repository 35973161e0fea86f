package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique key is already taken
	ErrConflict = errors.New("conflict: entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is returned when the backing store cannot be reached
	ErrUnavailable = errors.New("store unavailable")
)
