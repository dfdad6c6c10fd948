package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/lucas-garnier/ledgerbank/internal/clock"
	"github.com/lucas-garnier/ledgerbank/internal/domain"
	"github.com/lucas-garnier/ledgerbank/internal/logging"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance int64, newVersion int64) error
	Close(ctx context.Context, id uuid.UUID) error
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
	GetByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]domain.LedgerEntry, error)
}

type userChecker interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type AccountService struct {
	accounts accountRepo
	ledger   ledgerRepo
	users    userChecker
	db       *sql.DB
	clock    clock.Clock
}

func NewAccountService(accounts accountRepo, ledger ledgerRepo, users userChecker, db *sql.DB, clk clock.Clock) *AccountService {
	return &AccountService{accounts: accounts, ledger: ledger, users: users, db: db, clock: clk}
}

func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	number, err := generateAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: number,
		Balance:       0,
		Version:       1,
		Status:        domain.AccountStatusActive,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	log.Info("account created", "account_id", account.ID, "user_id", userID)
	return account, nil
}

func (s *AccountService) GetUserAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	accounts, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetUserAccounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) GetAccountEntries(ctx context.Context, accountID, callerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	if _, err := s.ownedAccount(ctx, accountID, callerID); err != nil {
		return nil, 0, fmt.Errorf("GetAccountEntries: %w", err)
	}
	entries, total, err := s.ledger.GetByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("GetAccountEntries: %w", err)
	}
	return entries, total, nil
}

func (s *AccountService) GetStatement(ctx context.Context, accountID, callerID uuid.UUID, from, to time.Time) ([]domain.LedgerEntry, error) {
	if _, err := s.ownedAccount(ctx, accountID, callerID); err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	entries, err := s.ledger.GetByAccountAndDateRange(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	return entries, nil
}

// Deposit credits cash onto an account and writes a single DEPOSIT entry.
func (s *AccountService) Deposit(ctx context.Context, accountID, callerID uuid.UUID, amount int64, description string) error {
	if amount <= 0 {
		return fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}
	return s.cashMovement(ctx, accountID, callerID, amount, domain.EntryKindDeposit, description)
}

// Withdraw debits cash from an account and writes a single WITHDRAW entry.
func (s *AccountService) Withdraw(ctx context.Context, accountID, callerID uuid.UUID, amount int64, description string) error {
	if amount <= 0 {
		return fmt.Errorf("Withdraw: %w", domain.ErrInvalidAmount)
	}
	return s.cashMovement(ctx, accountID, callerID, -amount, domain.EntryKindWithdraw, description)
}

func (s *AccountService) cashMovement(ctx context.Context, accountID, callerID uuid.UUID, delta int64, kind domain.EntryKind, description string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cashMovement: begin tx: %w", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return fmt.Errorf("cashMovement: %w", err)
	}
	if account.UserID != callerID {
		return fmt.Errorf("cashMovement: %w", domain.ErrUnauthorized)
	}
	if account.Status == domain.AccountStatusClosed {
		return fmt.Errorf("cashMovement: %w", domain.ErrAccountClosed)
	}
	if account.Balance+delta < 0 {
		return fmt.Errorf("cashMovement: %w", domain.ErrInsufficientFunds)
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	entry := &domain.LedgerEntry{
		ID:                uuid.New(),
		TransferID:        uuid.New(),
		AccountID:         account.ID,
		Kind:              kind,
		Amount:            amount,
		FromAccountNumber: account.AccountNumber,
		ToAccountNumber:   account.AccountNumber,
		Description:       description,
		Status:            domain.EntryStatusCompleted,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("cashMovement: %w", err)
	}

	if err := s.accounts.UpdateBalance(ctx, tx, account.ID, account.Balance+delta, account.Version+1); err != nil {
		return fmt.Errorf("cashMovement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cashMovement: commit: %w", err)
	}
	return nil
}

// CloseAccount zeroes the balance and marks the account CLOSED. The caller
// must own the account. Closure is terminal.
func (s *AccountService) CloseAccount(ctx context.Context, accountID, callerID uuid.UUID) error {
	log := logging.FromContext(ctx)

	account, err := s.ownedAccount(ctx, accountID, callerID)
	if err != nil {
		return fmt.Errorf("CloseAccount: %w", err)
	}

	if err := s.accounts.Close(ctx, accountID); err != nil {
		return fmt.Errorf("CloseAccount: %w", err)
	}

	log.Info("account closed", "account_id", accountID, "forfeited_balance", account.Balance)
	return nil
}

func (s *AccountService) ownedAccount(ctx context.Context, accountID, callerID uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != callerID {
		return nil, domain.ErrUnauthorized
	}
	return account, nil
}

func generateAccountNumber() (string, error) {
	digits := make([]byte, 10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generateAccountNumber: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
