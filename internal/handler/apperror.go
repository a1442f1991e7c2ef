package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Insufficient permissions"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrUnavailable      = &AppError{http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Storage is temporarily unavailable, please retry"}

	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient available balance"}
	ErrInvalidState      = &AppError{http.StatusConflict, "INVALID_STATE", "Resource is not in a state that allows this operation"}
	ErrAlreadySettled    = &AppError{http.StatusConflict, "ALREADY_SETTLED", "Deposit has already been settled"}
	ErrDuplicate         = &AppError{http.StatusConflict, "DUPLICATE", "Resource already exists"}
	ErrDuplicateTxHash   = &AppError{http.StatusConflict, "DUPLICATE_TX_HASH", "Transaction hash has already been used"}
	ErrAlreadyRun        = &AppError{http.StatusConflict, "PROFIT_RUN_ALREADY_COMPLETED", "Profit run already completed for today"}
	ErrRunInProgress     = &AppError{http.StatusConflict, "PROFIT_RUN_IN_PROGRESS", "A profit run for today is already in progress"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrUnknownLevel      = &AppError{http.StatusBadRequest, "UNKNOWN_LEVEL", "Unknown investment level"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInFlight   = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
