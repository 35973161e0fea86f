package dashboard

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every *FetchError.
	ErrFetch = errors.New("fetch failed")
	// ErrRefreshInProgress is returned when a refresh is requested while
	// another one is still running. The request is dropped, not queued.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrNoData indicates a fetch failure with no usable cached bundle.
	ErrNoData = errors.New("no dashboard data available")
	// ErrInvalidInput indicates a bad filter or granularity request.
	ErrInvalidInput = errors.New("invalid dashboard input")
)

// FetchError wraps a transport, auth or parse failure of one report.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
