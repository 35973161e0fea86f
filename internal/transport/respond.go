package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/render"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *record.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: ErrorDetail{
			Code: "validation_failed", Message: err.Error(), Data: verr.Issues,
		}})
	case errors.Is(err, dashboard.ErrInvalidInput), errors.Is(err, activity.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, dashboard.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, "refresh_in_progress", err.Error())
	case errors.Is(err, dashboard.ErrNoData):
		writeError(w, http.StatusServiceUnavailable, "no_data", err.Error())
	case errors.Is(err, render.ErrUnknownSeries):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
