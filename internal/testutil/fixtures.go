package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lucas-garnier/ledgerbank/internal/domain"
)

// TestPassword is the plaintext behind every seeded user's hash.
const TestPassword = "password123"

func SeedTestUser(t *testing.T, db *sql.DB, username, fullName string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		FullName:     fullName,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, username, full_name, email, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.FullName, u.Email, u.PasswordHash, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", username, err)
	}
	return u
}

func SeedTestAccount(t *testing.T, db *sql.DB, userID uuid.UUID, number string, balance int64) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: number,
		Balance:       balance,
		Version:       1,
		Status:        domain.AccountStatusActive,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, user_id, account_number, balance, version, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.AccountNumber, a.Balance, a.Version, a.Status, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test account %s: %v", number, err)
	}
	return a
}

func SeedScheduledTransfer(t *testing.T, db *sql.DB, sourceAccountID uuid.UUID, destNumber, beneficiary string, amount int64, at time.Time) *domain.ScheduledTransfer {
	t.Helper()

	st := &domain.ScheduledTransfer{
		ID:                       uuid.New(),
		SourceAccountID:          sourceAccountID,
		DestinationAccountNumber: destNumber,
		BeneficiaryName:          beneficiary,
		Amount:                   amount,
		ScheduledAt:              at,
		Executed:                 false,
		Status:                   domain.ScheduledTransferPending,
		CreatedAt:                time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO scheduled_transfers (
			id, source_account_id, destination_account_number,
			beneficiary_name, amount, scheduled_at, executed, status, refusal_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		st.ID, st.SourceAccountID, st.DestinationAccountNumber,
		st.BeneficiaryName, st.Amount, st.ScheduledAt,
		st.Executed, st.Status, st.RefusalReason, st.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed scheduled transfer: %v", err)
	}
	return st
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func CountLedgerEntries(t *testing.T, db *sql.DB, transferID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE transfer_id = $1`, transferID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for transfer %s: %v", transferID, err)
	}
	return count
}

func CountAccountEntries(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for account %s: %v", accountID, err)
	}
	return count
}
