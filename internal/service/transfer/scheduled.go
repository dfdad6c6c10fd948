package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucas-garnier/ledgerbank/internal/domain"
	"github.com/lucas-garnier/ledgerbank/internal/logging"
)

const refusalInsufficientFunds = "insufficient funds"

type ScheduleTransferRequest struct {
	SourceAccountID          uuid.UUID
	DestinationAccountNumber string
	BeneficiaryName          string
	Amount                   int64
	ScheduledAt              time.Time
	CallerID                 uuid.UUID
}

// Schedule registers a future-dated transfer. The beneficiary name is
// checked once, here, against the destination holder's name as it exists
// now; the executor does not re-verify it at execution time.
func (s *Service) Schedule(ctx context.Context, req ScheduleTransferRequest) (*domain.ScheduledTransfer, error) {
	log := logging.FromContext(ctx)

	if req.Amount <= 0 {
		return nil, fmt.Errorf("Schedule: %w", domain.ErrInvalidAmount)
	}

	dest, err := s.accounts.GetByNumber(ctx, req.DestinationAccountNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Schedule: %w", domain.ErrDestinationNotFound)
		}
		return nil, fmt.Errorf("Schedule: %w", err)
	}

	if err := s.verifyBeneficiary(ctx, req.BeneficiaryName, dest); err != nil {
		return nil, fmt.Errorf("Schedule: %w", err)
	}

	source, err := s.accounts.GetByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("Schedule: source: %w", err)
	}
	if source.UserID != req.CallerID {
		return nil, fmt.Errorf("Schedule: %w", domain.ErrUnauthorized)
	}

	now := s.clock.Now()
	if !req.ScheduledAt.After(now) {
		return nil, fmt.Errorf("Schedule: %w", domain.ErrPastScheduleDate)
	}

	st := &domain.ScheduledTransfer{
		ID:                       uuid.New(),
		SourceAccountID:          source.ID,
		DestinationAccountNumber: dest.AccountNumber,
		BeneficiaryName:          req.BeneficiaryName,
		Amount:                   req.Amount,
		ScheduledAt:              req.ScheduledAt.UTC(),
		Executed:                 false,
		Status:                   domain.ScheduledTransferPending,
		CreatedAt:                now,
	}
	if err := s.scheduled.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("Schedule: %w", err)
	}

	log.Info("transfer scheduled",
		"scheduled_transfer_id", st.ID,
		"source_account", source.ID,
		"scheduled_at", st.ScheduledAt,
		"amount", st.Amount,
	)

	return st, nil
}

// Cancel deletes a still-pending scheduled transfer owned by the caller.
func (s *Service) Cancel(ctx context.Context, id, callerID uuid.UUID) error {
	st, err := s.scheduled.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}

	source, err := s.accounts.GetByID(ctx, st.SourceAccountID)
	if err != nil {
		return fmt.Errorf("Cancel: source: %w", err)
	}
	if source.UserID != callerID {
		return fmt.Errorf("Cancel: %w", domain.ErrUnauthorized)
	}

	if st.Executed || st.Status != domain.ScheduledTransferPending {
		return fmt.Errorf("Cancel: %w", domain.ErrAlreadyProcessed)
	}

	// The delete is conditional on the record still being pending, so a
	// concurrent executor tick cannot lose the race silently.
	if err := s.scheduled.Delete(ctx, id); err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	return nil
}

func (s *Service) ListScheduledForUser(ctx context.Context, userID uuid.UUID) ([]domain.ScheduledTransfer, error) {
	transfers, err := s.scheduled.ListBySourceUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListScheduledForUser: %w", err)
	}
	return transfers, nil
}

// TickOutcome reports what happened to one due record during a tick.
type TickOutcome struct {
	ScheduledTransferID uuid.UUID
	Status              domain.ScheduledTransferStatus
	Skipped             bool
	Reason              string
}

// RunScheduledTick processes every due scheduled transfer once. Each record
// is handled independently: a failure is recorded as a refusal on that
// record and never aborts its siblings.
func (s *Service) RunScheduledTick(ctx context.Context, now time.Time, limit int) ([]TickOutcome, error) {
	due, err := s.scheduled.GetDue(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("RunScheduledTick: %w", err)
	}

	outcomes := make([]TickOutcome, 0, len(due))
	for _, st := range due {
		outcomes = append(outcomes, s.processDue(ctx, st, now))
	}
	return outcomes, nil
}

func (s *Service) processDue(ctx context.Context, st domain.ScheduledTransfer, now time.Time) TickOutcome {
	log := logging.FromContext(ctx)

	outcome, err := s.executeDue(ctx, st, now)
	if err == nil {
		if !outcome.Skipped {
			scheduledProcessedTotal.WithLabelValues(string(outcome.Status)).Inc()
		}
		return outcome
	}

	// Technical failure: the movement rolled back, so record the refusal
	// out of band and carry on with the rest of the batch.
	reason := err.Error()
	log.Error("scheduled transfer refused",
		"scheduled_transfer_id", st.ID,
		"reason", reason,
	)
	if rerr := s.scheduled.Refuse(ctx, st.ID, reason); rerr != nil {
		log.Error("failed to record refusal",
			"scheduled_transfer_id", st.ID,
			"error", rerr,
		)
	}
	scheduledProcessedTotal.WithLabelValues(string(domain.ScheduledTransferRefused)).Inc()
	return TickOutcome{
		ScheduledTransferID: st.ID,
		Status:              domain.ScheduledTransferRefused,
		Reason:              reason,
	}
}

// executeDue processes one due record inside a single transaction. The
// record is first re-locked conditionally: if a concurrent cancellation
// deleted it, or a previous tick already processed it, the item is skipped.
func (s *Service) executeDue(ctx context.Context, st domain.ScheduledTransfer, now time.Time) (TickOutcome, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TickOutcome{}, fmt.Errorf("executeDue: begin tx: %w", err)
	}
	defer tx.Rollback()

	claimed, err := s.scheduled.GetPendingForUpdate(ctx, tx, st.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TickOutcome{ScheduledTransferID: st.ID, Skipped: true}, nil
		}
		return TickOutcome{}, fmt.Errorf("executeDue: %w", err)
	}

	// Insufficiency is decided on the source balance before the
	// destination is even resolved, mirroring the request-path order.
	source, err := s.accounts.GetByID(ctx, claimed.SourceAccountID)
	if err != nil {
		return TickOutcome{}, fmt.Errorf("executeDue: source: %w", err)
	}
	if source.Balance < claimed.Amount {
		return s.refuseInTx(ctx, tx, claimed.ID, refusalInsufficientFunds)
	}

	dest, err := s.accounts.GetByNumber(ctx, claimed.DestinationAccountNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TickOutcome{}, fmt.Errorf("executeDue: %w", domain.ErrDestinationNotFound)
		}
		return TickOutcome{}, fmt.Errorf("executeDue: destination: %w", err)
	}

	receipt, err := s.moveFunds(ctx, tx, source.ID, dest.ID, claimed.Amount, now,
		fmt.Sprintf("Scheduled transfer to %s", dest.AccountNumber),
		fmt.Sprintf("Scheduled transfer from %s", source.AccountNumber),
	)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			// The authoritative, locked balance disagreed with the
			// preliminary read.
			return s.refuseInTx(ctx, tx, claimed.ID, refusalInsufficientFunds)
		}
		return TickOutcome{}, fmt.Errorf("executeDue: %w", err)
	}

	if err := s.scheduled.MarkProcessed(ctx, tx, claimed.ID, domain.ScheduledTransferExecuted, nil); err != nil {
		return TickOutcome{}, fmt.Errorf("executeDue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return TickOutcome{}, fmt.Errorf("executeDue: commit: %w", err)
	}

	log.Info("scheduled transfer executed",
		"scheduled_transfer_id", claimed.ID,
		"transfer_id", receipt.TransferID,
		"amount", claimed.Amount,
	)
	transfersTotal.WithLabelValues("scheduled").Inc()

	return TickOutcome{
		ScheduledTransferID: claimed.ID,
		Status:              domain.ScheduledTransferExecuted,
	}, nil
}

// refuseInTx records a refusal within the processing transaction, so the
// balance reads and the status flip commit atomically.
func (s *Service) refuseInTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string) (TickOutcome, error) {
	if err := s.scheduled.MarkProcessed(ctx, tx, id, domain.ScheduledTransferRefused, &reason); err != nil {
		return TickOutcome{}, fmt.Errorf("refuseInTx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return TickOutcome{}, fmt.Errorf("refuseInTx: commit: %w", err)
	}
	return TickOutcome{
		ScheduledTransferID: id,
		Status:              domain.ScheduledTransferRefused,
		Reason:              reason,
	}, nil
}
