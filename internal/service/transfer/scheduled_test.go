package transfer_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucas-garnier/ledgerbank/internal/clock"
	"github.com/lucas-garnier/ledgerbank/internal/domain"
	"github.com/lucas-garnier/ledgerbank/internal/service/transfer"
	"github.com/lucas-garnier/ledgerbank/internal/testutil"
)

func getScheduledRow(t *testing.T, db *sql.DB, id uuid.UUID) (executed bool, status string, reason *string) {
	t.Helper()
	err := db.QueryRow(
		`SELECT executed, status, refusal_reason FROM scheduled_transfers WHERE id = $1`, id,
	).Scan(&executed, &status, &reason)
	require.NoError(t, err)
	return executed, status, reason
}

func TestSchedule_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_sh", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_sh", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1100000001", 10000)
	testutil.SeedTestAccount(t, db, recipient.ID, "1100000002", 0)

	st, err := svc.Schedule(ctx, transfer.ScheduleTransferRequest{
		SourceAccountID:          senderAcct.ID,
		DestinationAccountNumber: "1100000002",
		BeneficiaryName:          "Marie Durand",
		Amount:                   3000,
		ScheduledAt:              clk.Now().Add(24 * time.Hour),
		CallerID:                 sender.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledTransferPending, st.Status)
	assert.False(t, st.Executed)

	// Nothing moves at creation time.
	assert.Equal(t, int64(10000), testutil.GetAccountBalance(t, db, senderAcct.ID))

	listed, err := svc.ListScheduledForUser(ctx, sender.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, st.ID, listed[0].ID)
}

func TestSchedule_PastDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_pd", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_pd", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1200000001", 10000)
	testutil.SeedTestAccount(t, db, recipient.ID, "1200000002", 0)

	// The execution date must be strictly in the future; "now" is too early.
	for _, at := range []time.Time{clk.Now(), clk.Now().Add(-time.Hour)} {
		_, err := svc.Schedule(ctx, transfer.ScheduleTransferRequest{
			SourceAccountID:          senderAcct.ID,
			DestinationAccountNumber: "1200000002",
			BeneficiaryName:          "Marie Durand",
			Amount:                   3000,
			ScheduledAt:              at,
			CallerID:                 sender.ID,
		})
		require.ErrorIs(t, err, domain.ErrPastScheduleDate)
	}
}

func TestSchedule_BeneficiaryMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_sb", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_sb", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1300000001", 10000)
	testutil.SeedTestAccount(t, db, recipient.ID, "1300000002", 0)

	_, err := svc.Schedule(ctx, transfer.ScheduleTransferRequest{
		SourceAccountID:          senderAcct.ID,
		DestinationAccountNumber: "1300000002",
		BeneficiaryName:          "Paul Martin",
		Amount:                   3000,
		ScheduledAt:              clk.Now().Add(time.Hour),
		CallerID:                 sender.ID,
	})
	require.ErrorIs(t, err, domain.ErrBeneficiaryMismatch)
}

func TestRunScheduledTick_ExecutesDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_ed", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_ed", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1400000001", 10000)
	recipientAcct := testutil.SeedTestAccount(t, db, recipient.ID, "1400000002", 0)

	st := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "1400000002", "Marie Durand", 3000, clk.Now().Add(time.Hour))

	// Not due yet.
	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	clk.Advance(2 * time.Hour)
	outcomes, err = svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, st.ID, outcomes[0].ScheduledTransferID)
	assert.Equal(t, domain.ScheduledTransferExecuted, outcomes[0].Status)

	assert.Equal(t, int64(7000), testutil.GetAccountBalance(t, db, senderAcct.ID))
	assert.Equal(t, int64(3000), testutil.GetAccountBalance(t, db, recipientAcct.ID))

	executed, status, reason := getScheduledRow(t, db, st.ID)
	assert.True(t, executed)
	assert.Equal(t, "EXECUTED", status)
	assert.Nil(t, reason)

	assert.Equal(t, 1, testutil.CountAccountEntries(t, db, senderAcct.ID))
	assert.Equal(t, 1, testutil.CountAccountEntries(t, db, recipientAcct.ID))

	// A second tick finds nothing left to do.
	outcomes, err = svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, int64(7000), testutil.GetAccountBalance(t, db, senderAcct.ID))
}

func TestRunScheduledTick_RefusesInsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_ri", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_ri", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1500000001", 1000)
	recipientAcct := testutil.SeedTestAccount(t, db, recipient.ID, "1500000002", 0)

	st := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "1500000002", "Marie Durand", 5000, clk.Now().Add(-time.Minute))

	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.ScheduledTransferRefused, outcomes[0].Status)
	assert.Equal(t, "insufficient funds", outcomes[0].Reason)

	executed, status, reason := getScheduledRow(t, db, st.ID)
	assert.True(t, executed, "a refused transfer is still processed")
	assert.Equal(t, "REFUSED", status)
	require.NotNil(t, reason)
	assert.Equal(t, "insufficient funds", *reason)

	assert.Equal(t, int64(1000), testutil.GetAccountBalance(t, db, senderAcct.ID))
	assert.Equal(t, int64(0), testutil.GetAccountBalance(t, db, recipientAcct.ID))
	assert.Equal(t, 0, testutil.CountAccountEntries(t, db, senderAcct.ID))

	// Refusal is final: topping the account up does not revive the record.
	_, err = db.Exec(`UPDATE accounts SET balance = 10000 WHERE id = $1`, senderAcct.ID)
	require.NoError(t, err)
	outcomes, err = svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRunScheduledTick_RefusesOnMissingDestination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_md", "Jean Dupont")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1600000001", 10000)

	st := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "9999999999", "Marie Durand", 3000, clk.Now().Add(-time.Minute))

	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.ScheduledTransferRefused, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Reason)

	executed, status, reason := getScheduledRow(t, db, st.ID)
	assert.True(t, executed)
	assert.Equal(t, "REFUSED", status)
	require.NotNil(t, reason)

	assert.Equal(t, int64(10000), testutil.GetAccountBalance(t, db, senderAcct.ID))
}

func TestRunScheduledTick_IndependentFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_if2", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_if2", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1700000001", 4000)
	recipientAcct := testutil.SeedTestAccount(t, db, recipient.ID, "1700000002", 0)

	// One will fail on a missing destination, the other must still execute.
	bad := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "9999999999", "Marie Durand", 1000, clk.Now().Add(-2*time.Minute))
	good := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "1700000002", "Marie Durand", 3000, clk.Now().Add(-time.Minute))

	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := map[uuid.UUID]domain.ScheduledTransferStatus{}
	for _, o := range outcomes {
		byID[o.ScheduledTransferID] = o.Status
	}
	assert.Equal(t, domain.ScheduledTransferRefused, byID[bad.ID])
	assert.Equal(t, domain.ScheduledTransferExecuted, byID[good.ID])

	assert.Equal(t, int64(1000), testutil.GetAccountBalance(t, db, senderAcct.ID))
	assert.Equal(t, int64(3000), testutil.GetAccountBalance(t, db, recipientAcct.ID))
}

func TestCancel_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_ch", "Jean Dupont")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1800000001", 10000)

	st := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "1800000001", "Jean Dupont", 1000, clk.Now().Add(time.Hour))

	require.NoError(t, svc.Cancel(ctx, st.ID, sender.ID))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM scheduled_transfers WHERE id = $1`, st.ID).Scan(&count))
	assert.Equal(t, 0, count, "cancellation deletes the record")

	// The executor never sees it.
	clk.Advance(2 * time.Hour)
	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestCancel_NotOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_cn", "Jean Dupont")
	other := testutil.SeedTestUser(t, db, "mdurand_cn", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "1900000001", 10000)

	st := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "1900000001", "Jean Dupont", 1000, clk.Now().Add(time.Hour))

	require.ErrorIs(t, svc.Cancel(ctx, st.ID, other.ID), domain.ErrUnauthorized)
}

func TestCancel_AfterExecution(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_ce", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_ce", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "2100000001", 10000)
	testutil.SeedTestAccount(t, db, recipient.ID, "2100000002", 0)

	st := testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "2100000002", "Marie Durand", 3000, clk.Now().Add(-time.Minute))

	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 100)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, domain.ScheduledTransferExecuted, outcomes[0].Status)

	require.ErrorIs(t, svc.Cancel(ctx, st.ID, sender.ID), domain.ErrAlreadyProcessed)
}

func TestCancel_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db, clock.System())
	ctx := context.Background()

	require.ErrorIs(t, svc.Cancel(ctx, uuid.New(), uuid.New()), domain.ErrNotFound)
}

func TestRunScheduledTick_RespectsBatchLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := setupTransferService(t, db, clk)
	ctx := context.Background()

	sender := testutil.SeedTestUser(t, db, "jdupont_bl", "Jean Dupont")
	recipient := testutil.SeedTestUser(t, db, "mdurand_bl", "Marie Durand")
	senderAcct := testutil.SeedTestAccount(t, db, sender.ID, "2200000001", 10000)
	testutil.SeedTestAccount(t, db, recipient.ID, "2200000002", 0)

	for i := range 3 {
		testutil.SeedScheduledTransfer(t, db, senderAcct.ID, "2200000002", "Marie Durand", 1000,
			clk.Now().Add(-time.Duration(i+1)*time.Minute))
	}

	outcomes, err := svc.RunScheduledTick(ctx, clk.Now(), 2)
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)

	outcomes, err = svc.RunScheduledTick(ctx, clk.Now(), 2)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)

	assert.Equal(t, int64(7000), testutil.GetAccountBalance(t, db, senderAcct.ID))
}
