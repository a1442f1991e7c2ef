package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps a service error onto the API error table. Causes
// are logged, never echoed to the client.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := appErrorFor(err)
	if appErr.Status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "error", err, "code", appErr.Code)
	}
	RespondAppError(w, appErr, nil)
}

func appErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrAlreadySettled):
		return ErrAlreadySettled
	case errors.Is(err, domain.ErrInvalidState):
		return ErrInvalidState
	case errors.Is(err, domain.ErrDuplicateTxHash):
		return ErrDuplicateTxHash
	case errors.Is(err, domain.ErrDuplicate):
		return ErrDuplicate
	case errors.Is(err, domain.ErrAlreadyRun):
		return ErrAlreadyRun
	case errors.Is(err, domain.ErrRunInProgress):
		return ErrRunInProgress
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrUnknownLevel):
		return ErrUnknownLevel
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	case errors.Is(err, domain.ErrPersistence):
		return ErrUnavailable
	default:
		return ErrInternalError
	}
}
