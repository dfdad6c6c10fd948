// Package transfer implements the money-movement core: immediate
// transfers, the scheduled-transfer lifecycle, and the shared paired
// ledger-write routine both paths go through.
package transfer

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lucas-garnier/ledgerbank/internal/clock"
	"github.com/lucas-garnier/ledgerbank/internal/domain"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance int64, newVersion int64) error
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error)
}

type scheduledRepo interface {
	Create(ctx context.Context, st *domain.ScheduledTransfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledTransfer, error)
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTransfer, error)
	ListBySourceUser(ctx context.Context, userID uuid.UUID) ([]domain.ScheduledTransfer, error)
	GetPendingForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.ScheduledTransfer, error)
	MarkProcessed(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.ScheduledTransferStatus, refusalReason *string) error
	Refuse(ctx context.Context, id uuid.UUID, reason string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type beneficiaryVerifier interface {
	Matches(claimed, actual string) bool
}

type Service struct {
	accounts  accountRepo
	users     userRepo
	ledger    ledgerRepo
	scheduled scheduledRepo
	verifier  beneficiaryVerifier
	db        *sql.DB
	clock     clock.Clock
}

func NewService(
	accounts accountRepo,
	users userRepo,
	ledger ledgerRepo,
	scheduled scheduledRepo,
	verifier beneficiaryVerifier,
	db *sql.DB,
	clk clock.Clock,
) *Service {
	return &Service{
		accounts:  accounts,
		users:     users,
		ledger:    ledger,
		scheduled: scheduled,
		verifier:  verifier,
		db:        db,
		clock:     clk,
	}
}
