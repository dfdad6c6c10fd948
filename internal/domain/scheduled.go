package domain

import (
	"time"

	"github.com/google/uuid"
)

type ScheduledTransferStatus string

const (
	ScheduledTransferPending  ScheduledTransferStatus = "PENDING"
	ScheduledTransferExecuted ScheduledTransferStatus = "EXECUTED"
	ScheduledTransferRefused  ScheduledTransferStatus = "REFUSED"
)

// ScheduledTransfer is a transfer deferred to a future execution time.
// It transitions exactly once from PENDING to EXECUTED or REFUSED, and
// Executed flips false to true at the same moment. Once Executed is set
// the record is immutable; while PENDING the owner may delete it.
type ScheduledTransfer struct {
	ID                       uuid.UUID
	SourceAccountID          uuid.UUID
	DestinationAccountNumber string
	BeneficiaryName          string
	Amount                   int64
	ScheduledAt              time.Time
	Executed                 bool
	Status                   ScheduledTransferStatus
	RefusalReason            *string
	CreatedAt                time.Time
}
