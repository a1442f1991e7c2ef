package service_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
	"github.com/josh-kwaku/yield-ledger/internal/service"
	"github.com/josh-kwaku/yield-ledger/internal/testutil"
)

type services struct {
	deposits    *service.DepositService
	withdrawals *service.WithdrawalService
	investments *service.InvestmentService
	queries     *service.QueryService
}

func setupServices(t *testing.T, db *sql.DB) services {
	t.Helper()

	users := repository.NewUserRepository(db)
	journal := repository.NewJournalRepository(db)
	l := ledger.New(repository.NewAccountRepository(db), journal)
	rates := map[int]decimal.Decimal{
		1: decimal.RequireFromString("0.5"),
		2: decimal.RequireFromString("0.8"),
	}

	return services{
		deposits:    service.NewDepositService(repository.NewDepositRepository(db), users, l, db),
		withdrawals: service.NewWithdrawalService(repository.NewWithdrawalRepository(db), users, l, db),
		investments: service.NewInvestmentService(repository.NewInvestmentRepository(db), users, l, db, rates, time.UTC),
		queries: service.NewQueryService(
			repository.NewAccountRepository(db), users, journal, repository.NewProfitRunRepository(db),
		),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func assertLedgerConsistent(t *testing.T, db *sql.DB, userID uuid.UUID) {
	t.Helper()
	acct := testutil.GetAccount(t, db, userID)
	assert.True(t, acct.Consistent(), "balance split broken: %+v", acct)
	net := testutil.NetEffect(t, db, userID)
	assert.True(t, acct.Balance.Equal(net), "balance %s journal net %s", acct.Balance, net)
}

func TestConfirmDeposit_CreditsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "depositor@test.com", "Depositor")

	d, err := svc.deposits.SubmitDeposit(ctx, user.ID, dec("250"), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusPending, d.Status)

	confirmed, err := svc.deposits.ConfirmDeposit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	acct := testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "250", acct.Balance)
	assertDecimal(t, "250", acct.AvailableBalance)
	assertDecimal(t, "0", acct.InvestedBalance)

	entries := testutil.JournalEntries(t, db, domain.ReferenceTypeDeposit, d.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransactionTypeDeposit, entries[0].TransactionType)
	assertDecimal(t, "250", entries[0].BalanceAfter.Sub(entries[0].BalanceBefore))

	_, err = svc.deposits.ConfirmDeposit(ctx, d.ID)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)

	assertDecimal(t, "250", testutil.GetAccount(t, db, user.ID).Balance)
	assert.Equal(t, 1, testutil.CountJournalEntries(t, db, user.ID, domain.TransactionTypeDeposit))
	assertLedgerConsistent(t, db, user.ID)
}

func TestConfirmDeposit_ConcurrentConfirmations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "race@test.com", "Race")
	d, err := svc.deposits.SubmitDeposit(ctx, user.ID, dec("100"), "0xrace")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = svc.deposits.ConfirmDeposit(ctx, d.ID)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	}
	assert.Equal(t, 1, succeeded)
	assertDecimal(t, "100", testutil.GetAccount(t, db, user.ID).Balance)
	assertLedgerConsistent(t, db, user.ID)
}

func TestSubmitDeposit_DuplicateTxHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "dup@test.com", "Dup")

	_, err := svc.deposits.SubmitDeposit(ctx, user.ID, dec("10"), "0xsame")
	require.NoError(t, err)

	_, err = svc.deposits.SubmitDeposit(ctx, user.ID, dec("10"), "0xsame")
	require.ErrorIs(t, err, domain.ErrDuplicateTxHash)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestFailDeposit_NoBalanceChange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "failed@test.com", "Failed")
	d, err := svc.deposits.SubmitDeposit(ctx, user.ID, dec("75"), "0xfail")
	require.NoError(t, err)

	failed, err := svc.deposits.FailDeposit(ctx, d.ID, "not found on chain")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusFailed, failed.Status)

	_, err = svc.deposits.ConfirmDeposit(ctx, d.ID)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)

	bal, err := svc.queries.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assertDecimal(t, "0", bal.Balance)
	assert.Equal(t, 0, testutil.CountJournalEntries(t, db, user.ID, domain.TransactionTypeDeposit))
}

func TestConfirmDeposit_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)

	_, err := svc.deposits.ConfirmDeposit(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRejectWithdrawal_RestoresFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "withdrawer@test.com", "Withdrawer")
	testutil.FundAccount(t, db, user.ID, "500")

	w, err := svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("100"), "0xdest")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)

	acct := testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "400", acct.Balance)
	assertDecimal(t, "400", acct.AvailableBalance)

	rejected, err := svc.withdrawals.RejectWithdrawal(ctx, w.ID, "address flagged")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ProcessedAt)

	acct = testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "500", acct.Balance)
	assertDecimal(t, "500", acct.AvailableBalance)

	var refunds []domain.JournalEntry
	for _, e := range testutil.JournalEntries(t, db, domain.ReferenceTypeWithdrawal, w.ID) {
		if e.TransactionType == domain.TransactionTypeRefund {
			refunds = append(refunds, e)
		}
	}
	require.Len(t, refunds, 1)
	assertDecimal(t, "100", refunds[0].Amount)
	assertDecimal(t, "400", refunds[0].BalanceBefore)
	assertDecimal(t, "500", refunds[0].BalanceAfter)

	_, err = svc.withdrawals.RejectWithdrawal(ctx, w.ID, "again")
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = svc.withdrawals.ApproveWithdrawal(ctx, w.ID, "0xhash")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	assertDecimal(t, "500", testutil.GetAccount(t, db, user.ID).Balance)
	assertLedgerConsistent(t, db, user.ID)

	journal := repository.NewJournalRepository(db)
	reserved, err := journal.Sum(ctx, user.ID, domain.TransactionTypeWithdrawal, &w.ID)
	require.NoError(t, err)
	refunded, err := journal.Sum(ctx, user.ID, domain.TransactionTypeRefund, &w.ID)
	require.NoError(t, err)
	assertDecimal(t, "-100", reserved)
	assert.True(t, reserved.Add(refunded).IsZero(), "net withdrawn %s", reserved.Add(refunded))
}

func TestApproveWithdrawal_CompletionEntryHasNoEffect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "approved@test.com", "Approved")
	testutil.FundAccount(t, db, user.ID, "300")

	w, err := svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("120"), "0xdest")
	require.NoError(t, err)

	approved, err := svc.withdrawals.ApproveWithdrawal(ctx, w.ID, "0xpaid")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, approved.Status)
	require.NotNil(t, approved.TxHash)
	assert.Equal(t, "0xpaid", *approved.TxHash)

	acct := testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "180", acct.Balance)
	assertDecimal(t, "180", acct.AvailableBalance)

	entries := testutil.JournalEntries(t, db, domain.ReferenceTypeWithdrawal, w.ID)
	require.Len(t, entries, 2)
	completion := entries[1]
	assert.Equal(t, domain.TransactionTypeWithdrawal, completion.TransactionType)
	assert.True(t, completion.Amount.IsZero())
	assert.True(t, completion.BalanceBefore.Equal(completion.BalanceAfter))

	journal := repository.NewJournalRepository(db)
	withdrawn, err := journal.Sum(ctx, user.ID, domain.TransactionTypeWithdrawal, &w.ID)
	require.NoError(t, err)
	assertDecimal(t, "-120", withdrawn)

	_, err = svc.withdrawals.ApproveWithdrawal(ctx, w.ID, "0xpaid-again")
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assertLedgerConsistent(t, db, user.ID)
}

func TestApproveWithdrawal_DuplicateTxHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "hash@test.com", "Hash")
	testutil.FundAccount(t, db, user.ID, "100")

	first, err := svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("10"), "0xa")
	require.NoError(t, err)
	second, err := svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("20"), "0xb")
	require.NoError(t, err)

	_, err = svc.withdrawals.ApproveWithdrawal(ctx, first.ID, "0xshared")
	require.NoError(t, err)

	_, err = svc.withdrawals.ApproveWithdrawal(ctx, second.ID, "0xshared")
	require.ErrorIs(t, err, domain.ErrDuplicateTxHash)

	w, err := svc.withdrawals.GetWithdrawal(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "short@test.com", "Short")
	testutil.FundAccount(t, db, user.ID, "1000")
	testutil.SeedInvestment(t, db, user.ID, "900", "0.5", time.Now().UTC().AddDate(0, 0, 1))

	_, err := svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("200"), "0xdest")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	acct := testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "1000", acct.Balance)
	assertDecimal(t, "100", acct.AvailableBalance)
	assertDecimal(t, "900", acct.InvestedBalance)
	assert.Equal(t, 0, testutil.CountJournalEntries(t, db, user.ID, domain.TransactionTypeWithdrawal))
}

func TestRequestWithdrawal_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "overdraft@test.com", "Overdraft")
	testutil.FundAccount(t, db, user.ID, "100")

	const workers = 5
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("30"), "0xdest")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}
	assert.Equal(t, 3, succeeded)

	acct := testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "10", acct.Balance)
	assertLedgerConsistent(t, db, user.ID)
}

func TestCreateInvestment_MovesAvailableToInvested(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "investor@test.com", "Investor")
	testutil.FundAccount(t, db, user.ID, "1500")

	inv, err := svc.investments.CreateInvestment(ctx, user.ID, dec("1000"), 1)
	require.NoError(t, err)
	assertDecimal(t, "0.5", inv.ProfitRate)
	assert.Equal(t, domain.InvestmentStatusActive, inv.Status)
	assert.Equal(t, domain.CivilDate(time.Now(), time.UTC).AddDate(0, 0, 1), inv.NextProfitDate)

	acct := testutil.GetAccount(t, db, user.ID)
	assertDecimal(t, "1500", acct.Balance)
	assertDecimal(t, "500", acct.AvailableBalance)
	assertDecimal(t, "1000", acct.InvestedBalance)

	entries := testutil.JournalEntries(t, db, domain.ReferenceTypeInvestment, inv.ID)
	require.Len(t, entries, 1)
	assertDecimal(t, "1000", entries[0].Amount)
	assert.True(t, entries[0].Effect().IsZero())

	rec, err := svc.queries.VerifyAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced(), "reconciliation: %+v", rec)
}

func TestCreateInvestment_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "picky@test.com", "Picky")
	testutil.FundAccount(t, db, user.ID, "50")

	tests := []struct {
		name    string
		amount  string
		level   int
		wantErr error
	}{
		{"unknown level", "10", 9, domain.ErrUnknownLevel},
		{"zero amount", "0", 1, domain.ErrInvalidAmount},
		{"more than available", "60", 1, domain.ErrInsufficientFunds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.investments.CreateInvestment(ctx, user.ID, dec(tc.amount), tc.level)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	assertDecimal(t, "50", testutil.GetAccount(t, db, user.ID).AvailableBalance)
}

func TestGetBalance_UserWithoutActivity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "quiet@test.com", "Quiet")

	acct, err := svc.queries.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, acct.UserID)
	assert.True(t, acct.Balance.IsZero())

	_, err = svc.queries.GetBalance(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSuspendedUser_CannotStartMovements(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "frozen@test.com", "Frozen")
	testutil.FundAccount(t, db, user.ID, "100")
	pending, err := svc.deposits.SubmitDeposit(ctx, user.ID, dec("20"), "0xbefore")
	require.NoError(t, err)

	testutil.SetUserStatus(t, db, user.ID, domain.UserStatusSuspended)

	_, err = svc.deposits.SubmitDeposit(ctx, user.ID, dec("10"), "0xafter")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = svc.withdrawals.RequestWithdrawal(ctx, user.ID, dec("10"), "0xdest")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = svc.investments.CreateInvestment(ctx, user.ID, dec("10"), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.deposits.ConfirmDeposit(ctx, pending.ID)
	require.NoError(t, err)
	assertDecimal(t, "120", testutil.GetAccount(t, db, user.ID).Balance)
	assertLedgerConsistent(t, db, user.ID)
}
