package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucas-garnier/ledgerbank/internal/domain"
)

const scheduledColumns = `id, source_account_id, destination_account_number,
	beneficiary_name, amount, scheduled_at, executed, status, refusal_reason, created_at`

type ScheduledTransferRepository struct {
	db *sql.DB
}

func NewScheduledTransferRepository(db *sql.DB) *ScheduledTransferRepository {
	return &ScheduledTransferRepository{db: db}
}

func (r *ScheduledTransferRepository) Create(ctx context.Context, st *domain.ScheduledTransfer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_transfers (
			id, source_account_id, destination_account_number,
			beneficiary_name, amount, scheduled_at, executed, status, refusal_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		st.ID, st.SourceAccountID, st.DestinationAccountNumber,
		st.BeneficiaryName, st.Amount, st.ScheduledAt,
		st.Executed, st.Status, st.RefusalReason, st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ScheduledTransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledTransfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+scheduledColumns+` FROM scheduled_transfers WHERE id = $1`, id,
	)
	st, err := scanScheduledTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return st, nil
}

// GetDue returns unprocessed transfers whose scheduled time has arrived.
func (r *ScheduledTransferRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTransfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduledColumns+` FROM scheduled_transfers
		WHERE status = $1 AND executed = FALSE AND scheduled_at <= $2
		ORDER BY scheduled_at LIMIT $3`,
		domain.ScheduledTransferPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetDue: %w", err)
	}
	defer rows.Close()

	var due []domain.ScheduledTransfer
	for rows.Next() {
		st, err := scanScheduledTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("GetDue: scan: %w", err)
		}
		due = append(due, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetDue: rows: %w", err)
	}
	return due, nil
}

func (r *ScheduledTransferRepository) ListBySourceUser(ctx context.Context, userID uuid.UUID) ([]domain.ScheduledTransfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT st.id, st.source_account_id, st.destination_account_number,
			st.beneficiary_name, st.amount, st.scheduled_at, st.executed,
			st.status, st.refusal_reason, st.created_at
		FROM scheduled_transfers st
		JOIN accounts a ON a.id = st.source_account_id
		WHERE a.user_id = $1
		ORDER BY st.scheduled_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListBySourceUser: %w", err)
	}
	defer rows.Close()

	var transfers []domain.ScheduledTransfer
	for rows.Next() {
		st, err := scanScheduledTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBySourceUser: scan: %w", err)
		}
		transfers = append(transfers, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBySourceUser: rows: %w", err)
	}
	return transfers, nil
}

// GetPendingForUpdate locks the record for processing. It only returns a
// row that is still PENDING and unexecuted, so a transfer claimed here
// cannot be cancelled or executed by anyone else until the tx ends.
// ErrNotFound means the record was processed or cancelled underneath us.
func (r *ScheduledTransferRepository) GetPendingForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.ScheduledTransfer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+scheduledColumns+` FROM scheduled_transfers
		WHERE id = $1 AND executed = FALSE AND status = $2 FOR UPDATE`,
		id, domain.ScheduledTransferPending,
	)
	st, err := scanScheduledTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetPendingForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetPendingForUpdate: %w", err)
	}
	return st, nil
}

// MarkProcessed flips executed to true and records the terminal status.
// The WHERE clause makes the flip a test-and-set: a record can only be
// processed once.
func (r *ScheduledTransferRepository) MarkProcessed(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.ScheduledTransferStatus, refusalReason *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE scheduled_transfers SET executed = TRUE, status = $1, refusal_reason = $2
		WHERE id = $3 AND executed = FALSE`,
		status, refusalReason, id,
	)
	if err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkProcessed: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkProcessed: %w", domain.ErrAlreadyProcessed)
	}
	return nil
}

// Refuse is the out-of-band variant of MarkProcessed used when a processing
// transaction already rolled back. It is a no-op if the record was cancelled
// in the meantime.
func (r *ScheduledTransferRepository) Refuse(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_transfers SET executed = TRUE, status = $1, refusal_reason = $2
		WHERE id = $3 AND executed = FALSE AND status = $4`,
		domain.ScheduledTransferRefused, reason, id, domain.ScheduledTransferPending,
	)
	if err != nil {
		return fmt.Errorf("Refuse: %w", err)
	}
	return nil
}

// Delete removes a still-pending record. Deleting a processed record fails
// with ErrAlreadyProcessed; the condition races safely against a concurrent
// executor tick.
func (r *ScheduledTransferRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_transfers
		WHERE id = $1 AND executed = FALSE AND status = $2`,
		id, domain.ScheduledTransferPending,
	)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrAlreadyProcessed)
	}
	return nil
}

func scanScheduledTransfer(s scanner) (*domain.ScheduledTransfer, error) {
	var st domain.ScheduledTransfer
	err := s.Scan(
		&st.ID, &st.SourceAccountID, &st.DestinationAccountNumber,
		&st.BeneficiaryName, &st.Amount, &st.ScheduledAt,
		&st.Executed, &st.Status, &st.RefusalReason, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
