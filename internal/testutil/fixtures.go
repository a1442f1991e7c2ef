package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
)

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Status:    domain.UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, string(hash), u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

func SetUserStatus(t *testing.T, db *sql.DB, id uuid.UUID, status domain.UserStatus) {
	t.Helper()

	if _, err := db.Exec(`UPDATE users SET status = $1 WHERE id = $2`, status, id); err != nil {
		t.Fatalf("set user %s status: %v", id, err)
	}
}

func newLedger(db *sql.DB) *ledger.Ledger {
	return ledger.New(repository.NewAccountRepository(db), repository.NewJournalRepository(db))
}

// FundAccount credits amount through a confirmed deposit so the journal and
// the account stay in agreement.
func FundAccount(t *testing.T, db *sql.DB, userID uuid.UUID, amount string) {
	t.Helper()
	ctx := context.Background()
	amt := decimal.RequireFromString(amount)

	now := time.Now().UTC()
	depositID := uuid.New()
	_, err := db.Exec(
		`INSERT INTO deposits (id, user_id, amount, tx_hash, status, created_at, confirmed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		depositID, userID, amt, "seed-"+depositID.String(), domain.DepositStatusConfirmed, now,
	)
	if err != nil {
		t.Fatalf("seed deposit for %s: %v", userID, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	if _, _, err := newLedger(db).Post(ctx, tx, ledger.Posting{
		UserID:        userID,
		Type:          domain.TransactionTypeDeposit,
		Amount:        amt,
		Credit:        domain.FieldBalance | domain.FieldAvailable,
		ReferenceType: domain.ReferenceTypeDeposit,
		ReferenceID:   depositID,
		Description:   "seed deposit",
	}); err != nil {
		t.Fatalf("post seed deposit for %s: %v", userID, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit seed deposit: %v", err)
	}
}

// SeedInvestment moves principal from the user's available balance into a
// new active investment. The user must already hold enough available funds.
func SeedInvestment(t *testing.T, db *sql.DB, userID uuid.UUID, principal, rate string, nextProfitDate time.Time) *domain.Investment {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	inv := &domain.Investment{
		ID:             uuid.New(),
		UserID:         userID,
		Amount:         decimal.RequireFromString(principal),
		Level:          1,
		ProfitRate:     decimal.RequireFromString(rate),
		Status:         domain.InvestmentStatusActive,
		NextProfitDate: nextProfitDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	if _, _, err := newLedger(db).Post(ctx, tx, ledger.Posting{
		UserID:        userID,
		Type:          domain.TransactionTypeInvestment,
		Amount:        inv.Amount,
		Debit:         domain.FieldAvailable,
		Credit:        domain.FieldInvested,
		ReferenceType: domain.ReferenceTypeInvestment,
		ReferenceID:   inv.ID,
		Description:   "seed investment",
	}); err != nil {
		t.Fatalf("post seed investment for %s: %v", userID, err)
	}
	if err := repository.NewInvestmentRepository(db).Create(ctx, tx, inv); err != nil {
		t.Fatalf("create seed investment: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit seed investment: %v", err)
	}
	return inv
}

func SetInvestmentStatus(t *testing.T, db *sql.DB, id uuid.UUID, status domain.InvestmentStatus) {
	t.Helper()

	if _, err := db.Exec(`UPDATE investments SET status = $1 WHERE id = $2`, status, id); err != nil {
		t.Fatalf("set investment %s status: %v", id, err)
	}
}

func GetAccount(t *testing.T, db *sql.DB, userID uuid.UUID) *domain.Account {
	t.Helper()

	a, err := repository.NewAccountRepository(db).GetByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get account for %s: %v", userID, err)
	}
	return a
}

func GetInvestment(t *testing.T, db *sql.DB, id uuid.UUID) *domain.Investment {
	t.Helper()

	inv, err := repository.NewInvestmentRepository(db).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get investment %s: %v", id, err)
	}
	return inv
}

func JournalEntries(t *testing.T, db *sql.DB, refType domain.ReferenceType, refID uuid.UUID) []domain.JournalEntry {
	t.Helper()

	entries, err := repository.NewJournalRepository(db).ListByReference(context.Background(), refType, refID)
	if err != nil {
		t.Fatalf("list journal entries for %s %s: %v", refType, refID, err)
	}
	return entries
}

func CountJournalEntries(t *testing.T, db *sql.DB, userID uuid.UUID, txType domain.TransactionType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM journal_entries WHERE user_id = $1 AND transaction_type = $2`,
		userID, txType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count %s journal entries for %s: %v", txType, userID, err)
	}
	return count
}

func NetEffect(t *testing.T, db *sql.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()

	net, err := repository.NewJournalRepository(db).NetEffect(context.Background(), userID)
	if err != nil {
		t.Fatalf("journal net effect for %s: %v", userID, err)
	}
	return net
}
