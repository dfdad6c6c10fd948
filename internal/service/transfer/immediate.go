package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lucas-garnier/ledgerbank/internal/domain"
	"github.com/lucas-garnier/ledgerbank/internal/logging"
)

type ImmediateTransferRequest struct {
	SourceAccountID          uuid.UUID
	DestinationAccountNumber string
	Amount                   int64
	Credential               string
	BeneficiaryName          string
	CallerID                 uuid.UUID
}

// Receipt describes a committed transfer.
type Receipt struct {
	TransferID    uuid.UUID
	SourceBalance int64
	ExecutedAt    time.Time
}

// ExecuteImmediateTransfer runs the ordered gate for an immediate transfer
// and commits the balance movement and the paired ledger entries as one
// transaction. Any failure leaves both accounts and the ledger untouched.
func (s *Service) ExecuteImmediateTransfer(ctx context.Context, req ImmediateTransferRequest) (*Receipt, error) {
	log := logging.FromContext(ctx)

	if req.Amount <= 0 {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", domain.ErrInvalidAmount)
	}

	dest, err := s.accounts.GetByNumber(ctx, req.DestinationAccountNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", domain.ErrDestinationNotFound)
		}
		return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", err)
	}

	if err := s.verifyBeneficiary(ctx, req.BeneficiaryName, dest); err != nil {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", err)
	}

	source, err := s.accounts.GetByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: source: %w", err)
	}
	if source.UserID != req.CallerID {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", domain.ErrUnauthorized)
	}

	owner, err := s.users.GetByID(ctx, source.UserID)
	if err != nil {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: owner: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(req.Credential)) != nil {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", domain.ErrInvalidCredential)
	}

	now := s.clock.Now()
	receipt, err := s.moveFundsTx(ctx, source.ID, dest.ID,
		req.Amount, now,
		fmt.Sprintf("Transfer to %s", dest.AccountNumber),
		fmt.Sprintf("Transfer from %s", source.AccountNumber),
	)
	if err != nil {
		return nil, fmt.Errorf("ExecuteImmediateTransfer: %w", err)
	}

	transfersTotal.WithLabelValues("immediate").Inc()

	log.Info("transfer completed",
		"transfer_id", receipt.TransferID,
		"source_account", source.ID,
		"destination_account", dest.ID,
		"amount", req.Amount,
	)

	return receipt, nil
}

// verifyBeneficiary compares the claimed name against the destination
// holder's registered full name.
func (s *Service) verifyBeneficiary(ctx context.Context, claimed string, dest *domain.Account) error {
	holder, err := s.users.GetByID(ctx, dest.UserID)
	if err != nil {
		return fmt.Errorf("verifyBeneficiary: holder: %w", err)
	}
	if !s.verifier.Matches(claimed, holder.FullName) {
		return fmt.Errorf("verifyBeneficiary: %w", domain.ErrBeneficiaryMismatch)
	}
	return nil
}

// moveFundsTx opens its own transaction around moveFunds.
func (s *Service) moveFundsTx(ctx context.Context, sourceID, destID uuid.UUID, amount int64, now time.Time, debitDesc, creditDesc string) (*Receipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("moveFundsTx: begin tx: %w", err)
	}
	defer tx.Rollback()

	receipt, err := s.moveFunds(ctx, tx, sourceID, destID, amount, now, debitDesc, creditDesc)
	if err != nil {
		return nil, fmt.Errorf("moveFundsTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("moveFundsTx: commit: %w", err)
	}
	return receipt, nil
}

// moveFunds locks both accounts in a stable order, debits the source,
// credits the destination and writes the two ledger legs. It is the single
// movement routine shared by the immediate path and the scheduled executor.
func (s *Service) moveFunds(ctx context.Context, tx *sql.Tx, sourceID, destID uuid.UUID, amount int64, now time.Time, debitDesc, creditDesc string) (*Receipt, error) {
	locked, err := lockAccountsInOrder(ctx, tx, s.accounts, sourceID, destID)
	if err != nil {
		return nil, fmt.Errorf("moveFunds: %w", err)
	}
	source, dest := locked[sourceID], locked[destID]

	if source.Status == domain.AccountStatusClosed {
		return nil, fmt.Errorf("moveFunds: source: %w", domain.ErrAccountClosed)
	}
	if dest.Status == domain.AccountStatusClosed {
		return nil, fmt.Errorf("moveFunds: destination: %w", domain.ErrAccountClosed)
	}
	if source.Balance < amount {
		return nil, fmt.Errorf("moveFunds: %w", domain.ErrInsufficientFunds)
	}

	transferID := uuid.New()
	if err := s.writeEntryPair(ctx, tx, transferID, source, dest, amount, now, debitDesc, creditDesc); err != nil {
		return nil, fmt.Errorf("moveFunds: %w", err)
	}

	if err := s.accounts.UpdateBalance(ctx, tx, source.ID, source.Balance-amount, source.Version+1); err != nil {
		return nil, fmt.Errorf("moveFunds: update source: %w", err)
	}
	if err := s.accounts.UpdateBalance(ctx, tx, dest.ID, dest.Balance+amount, dest.Version+1); err != nil {
		return nil, fmt.Errorf("moveFunds: update destination: %w", err)
	}

	return &Receipt{
		TransferID:    transferID,
		SourceBalance: source.Balance - amount,
		ExecutedAt:    now,
	}, nil
}

// writeEntryPair records the DEBIT and CREDIT legs of a transfer. Both legs
// share the transfer id, the amount and the timestamp; they differ only in
// the owning account and kind.
func (s *Service) writeEntryPair(ctx context.Context, tx *sql.Tx, transferID uuid.UUID, source, dest *domain.Account, amount int64, now time.Time, debitDesc, creditDesc string) error {
	debit := &domain.LedgerEntry{
		ID:                uuid.New(),
		TransferID:        transferID,
		AccountID:         source.ID,
		Kind:              domain.EntryKindDebit,
		Amount:            amount,
		FromAccountNumber: source.AccountNumber,
		ToAccountNumber:   dest.AccountNumber,
		Description:       debitDesc,
		Status:            domain.EntryStatusCompleted,
		CreatedAt:         now,
	}
	if err := s.ledger.Create(ctx, tx, debit); err != nil {
		return fmt.Errorf("writeEntryPair: debit: %w", err)
	}

	credit := &domain.LedgerEntry{
		ID:                uuid.New(),
		TransferID:        transferID,
		AccountID:         dest.ID,
		Kind:              domain.EntryKindCredit,
		Amount:            amount,
		FromAccountNumber: source.AccountNumber,
		ToAccountNumber:   dest.AccountNumber,
		Description:       creditDesc,
		Status:            domain.EntryStatusCompleted,
		CreatedAt:         now,
	}
	if err := s.ledger.Create(ctx, tx, credit); err != nil {
		return fmt.Errorf("writeEntryPair: credit: %w", err)
	}

	return nil
}

// GetTransferLegs returns both ledger legs of a committed transfer. The
// caller must own one of the accounts involved.
func (s *Service) GetTransferLegs(ctx context.Context, transferID, callerID uuid.UUID) ([]domain.LedgerEntry, error) {
	entries, err := s.ledger.GetByTransferID(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("GetTransferLegs: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("GetTransferLegs: %w", domain.ErrNotFound)
	}

	for _, e := range entries {
		acct, err := s.accounts.GetByID(ctx, e.AccountID)
		if err != nil {
			return nil, fmt.Errorf("GetTransferLegs: %w", err)
		}
		if acct.UserID == callerID {
			return entries, nil
		}
	}
	return nil, fmt.Errorf("GetTransferLegs: %w", domain.ErrUnauthorized)
}

// lockAccountsInOrder acquires row locks in lexicographic id order so that
// two opposite-direction transfers on the same account pair cannot
// deadlock.
func lockAccountsInOrder(ctx context.Context, tx *sql.Tx, accounts accountRepo, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range sorted {
		acct, err := accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockAccountsInOrder: %w", err)
		}
		result[id] = acct
	}
	return result, nil
}
