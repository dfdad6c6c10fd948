package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucas-garnier/ledgerbank/internal/auth"
	"github.com/lucas-garnier/ledgerbank/internal/domain"
	"github.com/lucas-garnier/ledgerbank/internal/service/transfer"
)

type transferService interface {
	ExecuteImmediateTransfer(ctx context.Context, req transfer.ImmediateTransferRequest) (*transfer.Receipt, error)
	Schedule(ctx context.Context, req transfer.ScheduleTransferRequest) (*domain.ScheduledTransfer, error)
	Cancel(ctx context.Context, id, callerID uuid.UUID) error
	ListScheduledForUser(ctx context.Context, userID uuid.UUID) ([]domain.ScheduledTransfer, error)
	GetTransferLegs(ctx context.Context, transferID, callerID uuid.UUID) ([]domain.LedgerEntry, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type transferRequest struct {
	SourceAccountID          string `json:"source_account_id"`
	DestinationAccountNumber string `json:"destination_account_number"`
	Amount                   string `json:"amount"`
	BeneficiaryName          string `json:"beneficiary_name"`
	Password                 string `json:"password"`
}

func (r transferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.SourceAccountID == "" {
		errs = append(errs, FieldError{Field: "source_account_id", Message: "required"})
	} else if _, err := uuid.Parse(r.SourceAccountID); err != nil {
		errs = append(errs, FieldError{Field: "source_account_id", Message: "must be a UUID"})
	}
	if r.DestinationAccountNumber == "" {
		errs = append(errs, FieldError{Field: "destination_account_number", Message: "required"})
	}
	if r.BeneficiaryName == "" {
		errs = append(errs, FieldError{Field: "beneficiary_name", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	if _, ferrs := parseAmount(r.Amount); ferrs != nil {
		errs = append(errs, ferrs...)
	}
	return errs
}

// parseAmount converts a decimal amount string like "400.00" to minor
// units. Amounts with more than two decimal places are rejected rather
// than rounded.
func parseAmount(s string) (int64, []FieldError) {
	if s == "" {
		return 0, []FieldError{{Field: "amount", Message: "required"}}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, []FieldError{{Field: "amount", Message: "must be a decimal number"}}
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, []FieldError{{Field: "amount", Message: "at most two decimal places"}}
	}
	if !cents.IsPositive() {
		return 0, []FieldError{{Field: "amount", Message: "must be greater than zero"}}
	}
	return cents.IntPart(), nil
}

type transferResponse struct {
	TransferID    uuid.UUID `json:"transfer_id"`
	SourceBalance string    `json:"source_balance"`
	ExecutedAt    time.Time `json:"executed_at"`
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := parseAmount(req.Amount)
	receipt, err := h.transfers.ExecuteImmediateTransfer(r.Context(), transfer.ImmediateTransferRequest{
		SourceAccountID:          uuid.MustParse(req.SourceAccountID),
		DestinationAccountNumber: req.DestinationAccountNumber,
		Amount:                   amount,
		Credential:               req.Password,
		BeneficiaryName:          req.BeneficiaryName,
		CallerID:                 callerID,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, transferResponse{
		TransferID:    receipt.TransferID,
		SourceBalance: formatAmount(receipt.SourceBalance),
		ExecutedAt:    receipt.ExecutedAt,
	})
}

type scheduleRequest struct {
	SourceAccountID          string    `json:"source_account_id"`
	DestinationAccountNumber string    `json:"destination_account_number"`
	Amount                   string    `json:"amount"`
	BeneficiaryName          string    `json:"beneficiary_name"`
	ScheduledAt              time.Time `json:"scheduled_at"`
}

func (r scheduleRequest) Validate() []FieldError {
	var errs []FieldError
	if r.SourceAccountID == "" {
		errs = append(errs, FieldError{Field: "source_account_id", Message: "required"})
	} else if _, err := uuid.Parse(r.SourceAccountID); err != nil {
		errs = append(errs, FieldError{Field: "source_account_id", Message: "must be a UUID"})
	}
	if r.DestinationAccountNumber == "" {
		errs = append(errs, FieldError{Field: "destination_account_number", Message: "required"})
	}
	if r.BeneficiaryName == "" {
		errs = append(errs, FieldError{Field: "beneficiary_name", Message: "required"})
	}
	if r.ScheduledAt.IsZero() {
		errs = append(errs, FieldError{Field: "scheduled_at", Message: "required"})
	}
	if _, ferrs := parseAmount(r.Amount); ferrs != nil {
		errs = append(errs, ferrs...)
	}
	return errs
}

type scheduledTransferDTO struct {
	ID                       uuid.UUID `json:"id"`
	SourceAccountID          uuid.UUID `json:"source_account_id"`
	DestinationAccountNumber string    `json:"destination_account_number"`
	BeneficiaryName          string    `json:"beneficiary_name"`
	Amount                   string    `json:"amount"`
	ScheduledAt              time.Time `json:"scheduled_at"`
	Executed                 bool      `json:"executed"`
	Status                   string    `json:"status"`
	RefusalReason            *string   `json:"refusal_reason,omitempty"`
}

func toScheduledTransferDTO(st *domain.ScheduledTransfer) scheduledTransferDTO {
	return scheduledTransferDTO{
		ID:                       st.ID,
		SourceAccountID:          st.SourceAccountID,
		DestinationAccountNumber: st.DestinationAccountNumber,
		BeneficiaryName:          st.BeneficiaryName,
		Amount:                   formatAmount(st.Amount),
		ScheduledAt:              st.ScheduledAt,
		Executed:                 st.Executed,
		Status:                   string(st.Status),
		RefusalReason:            st.RefusalReason,
	}
}

func (h *TransferHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := parseAmount(req.Amount)
	st, err := h.transfers.Schedule(r.Context(), transfer.ScheduleTransferRequest{
		SourceAccountID:          uuid.MustParse(req.SourceAccountID),
		DestinationAccountNumber: req.DestinationAccountNumber,
		BeneficiaryName:          req.BeneficiaryName,
		Amount:                   amount,
		ScheduledAt:              req.ScheduledAt,
		CallerID:                 callerID,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toScheduledTransferDTO(st))
}

func (h *TransferHandler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transfers, err := h.transfers.ListScheduledForUser(r.Context(), callerID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]scheduledTransferDTO, 0, len(transfers))
	for i := range transfers {
		dtos = append(dtos, toScheduledTransferDTO(&transfers[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

// Get returns the two ledger legs of a committed transfer.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	entries, err := h.transfers.GetTransferLegs(r.Context(), id, callerID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]ledgerEntryDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, toLedgerEntryDTO(&entries[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *TransferHandler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	if err := h.transfers.Cancel(r.Context(), id, callerID); err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func formatAmount(minorUnits int64) string {
	return decimal.New(minorUnits, -2).StringFixed(2)
}
