package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrForbidden           = &AppError{http.StatusForbidden, "FORBIDDEN", "You do not own this account"}
	ErrInvalidCredential   = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIAL", "Credential verification failed"}
	ErrInsufficientFunds   = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountClosed       = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrBeneficiaryMismatch = &AppError{http.StatusUnprocessableEntity, "BENEFICIARY_MISMATCH", "Beneficiary name does not match the account holder"}
	ErrDestinationNotFound = &AppError{http.StatusUnprocessableEntity, "DESTINATION_NOT_FOUND", "Destination account not found"}
	ErrPastScheduleDate    = &AppError{http.StatusBadRequest, "PAST_SCHEDULE_DATE", "Scheduled time must be in the future"}
	ErrAlreadyProcessed    = &AppError{http.StatusConflict, "ALREADY_PROCESSED", "Scheduled transfer was already processed"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrVersionConflict     = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrDuplicateResource   = &AppError{http.StatusConflict, "DUPLICATE_RESOURCE", "Resource already exists"}
)
