package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account holds a balance in minor units (cents). Closure is terminal:
// a closed account has a zero balance and accepts no further movements.
type Account struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AccountNumber string
	Balance       int64
	Version       int64
	Status        AccountStatus
	CreatedAt     time.Time
}
