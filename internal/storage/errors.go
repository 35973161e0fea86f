package storage

import "errors"

var (
	// ErrUnauthorized indicates the report store rejected the credentials.
	ErrUnauthorized = errors.New("report store rejected credentials")
	// ErrNotFound indicates the requested report does not exist.
	ErrNotFound = errors.New("report not found")
	// ErrUnavailable indicates the report store answered with a server error
	// or could not be reached.
	ErrUnavailable = errors.New("report store unavailable")
	// ErrCircuitOpen indicates recent failures have paused requests.
	ErrCircuitOpen = errors.New("report store circuit open")
)
