package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/export"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors map to
// INTERNAL.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var verr *record.ValidationError
	switch {
	case errors.As(err, &verr):
		return &APIError{Code: "VALIDATION_FAILED", Message: err.Error(), Details: verr.Issues,
			RecoveryHint: "Fix the listed rows in the source reports or disable strict validation"}
	case errors.Is(err, dashboard.ErrRefreshInProgress):
		return &APIError{Code: "REFRESH_IN_PROGRESS", Message: "a refresh is already running", RecoveryHint: "Retry after it completes"}
	case errors.Is(err, dashboard.ErrNoData):
		return &APIError{Code: "NO_DATA", Message: err.Error(), RecoveryHint: "Check the report store and call refresh_dashboard"}
	case errors.Is(err, dashboard.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Check filter keys, dates and granularity"}
	case errors.Is(err, errUnknownSection):
		return &APIError{Code: "UNKNOWN_SECTION", Message: err.Error(), Details: metrics.Names}
	case errors.Is(err, export.ErrMissingTable):
		return &APIError{Code: "EXPORT_FAILED", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}
