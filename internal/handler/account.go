package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lucas-garnier/ledgerbank/internal/auth"
	"github.com/lucas-garnier/ledgerbank/internal/domain"
)

type accountService interface {
	CreateAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetUserAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	GetAccountEntries(ctx context.Context, accountID, callerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
	GetStatement(ctx context.Context, accountID, callerID uuid.UUID, from, to time.Time) ([]domain.LedgerEntry, error)
	Deposit(ctx context.Context, accountID, callerID uuid.UUID, amount int64, description string) error
	Withdraw(ctx context.Context, accountID, callerID uuid.UUID, amount int64, description string) error
	CloseAccount(ctx context.Context, accountID, callerID uuid.UUID) error
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type accountDTO struct {
	ID            uuid.UUID `json:"id"`
	AccountNumber string    `json:"account_number"`
	Balance       string    `json:"balance"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		Balance:       formatAmount(a.Balance),
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
}

type ledgerEntryDTO struct {
	ID                uuid.UUID `json:"id"`
	TransferID        uuid.UUID `json:"transfer_id"`
	Kind              string    `json:"kind"`
	Amount            string    `json:"amount"`
	FromAccountNumber string    `json:"from_account_number"`
	ToAccountNumber   string    `json:"to_account_number"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
}

func toLedgerEntryDTO(e *domain.LedgerEntry) ledgerEntryDTO {
	return ledgerEntryDTO{
		ID:                e.ID,
		TransferID:        e.TransferID,
		Kind:              string(e.Kind),
		Amount:            formatAmount(e.Amount),
		FromAccountNumber: e.FromAccountNumber,
		ToAccountNumber:   e.ToAccountNumber,
		Description:       e.Description,
		CreatedAt:         e.CreatedAt,
	}
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accounts, err := h.accounts.GetUserAccounts(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, 0, len(accounts))
	for i := range accounts {
		dtos = append(dtos, toAccountDTO(&accounts[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Entries(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, total, err := h.accounts.GetAccountEntries(r.Context(), accountID, callerID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]ledgerEntryDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, toLedgerEntryDTO(&entries[i]))
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"entries": dtos,
		"total":   total,
	})
}

func (h *AccountHandler) Statement(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "from", Message: "must be an RFC 3339 timestamp"}})
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "to", Message: "must be an RFC 3339 timestamp"}})
		return
	}

	entries, err := h.accounts.GetStatement(r.Context(), accountID, callerID, from, to)
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

type cashRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.cashMovement(w, r, h.accounts.Deposit)
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.cashMovement(w, r, h.accounts.Withdraw)
}

func (h *AccountHandler) cashMovement(
	w http.ResponseWriter,
	r *http.Request,
	move func(ctx context.Context, accountID, callerID uuid.UUID, amount int64, description string) error,
) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	amount, fields := parseAmount(req.Amount)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	if err := move(r.Context(), accountID, callerID, amount, req.Description); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	if err := h.accounts.CloseAccount(r.Context(), accountID, callerID); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "closed"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
