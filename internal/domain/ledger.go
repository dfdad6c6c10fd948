package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryKindDebit    EntryKind = "DEBIT"
	EntryKindCredit   EntryKind = "CREDIT"
	EntryKindDeposit  EntryKind = "DEPOSIT"
	EntryKindWithdraw EntryKind = "WITHDRAW"
)

type EntryStatus string

const (
	EntryStatusCompleted EntryStatus = "COMPLETED"
)

// LedgerEntry is an immutable record of one side of a money movement.
// The two legs of a transfer share a TransferID and carry identical
// amount, timestamp and from/to account numbers; they differ in the
// owning account and kind.
type LedgerEntry struct {
	ID                uuid.UUID
	TransferID        uuid.UUID
	AccountID         uuid.UUID
	Kind              EntryKind
	Amount            int64
	FromAccountNumber string
	ToAccountNumber   string
	Description       string
	Status            EntryStatus
	CreatedAt         time.Time
}
