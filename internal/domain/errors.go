package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDestinationNotFound = errors.New("destination account not found")
	ErrBeneficiaryMismatch = errors.New("beneficiary name does not match account holder")
	ErrUnauthorized        = errors.New("caller does not own this account")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountClosed       = errors.New("account closed")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrPastScheduleDate    = errors.New("scheduled time must be in the future")
	ErrAlreadyProcessed    = errors.New("scheduled transfer already processed")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrDuplicate           = errors.New("resource already exists")
)
