// Package ledger posts balance movements: every change to an account's
// aggregates goes through Post, which writes the matching journal entry in
// the same transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

type accountStore interface {
	LockForUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Account, error)
	UpdateBalances(ctx context.Context, tx *sql.Tx, a *domain.Account) error
}

type journalStore interface {
	Append(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry) (uuid.UUID, error)
}

// Posting describes one journal entry and the account movement it records.
// Amount is the signed value written to the journal; its absolute value is
// taken from the Debit fields and then added to the Credit fields.
type Posting struct {
	UserID        uuid.UUID
	Type          domain.TransactionType
	Amount        decimal.Decimal
	Debit         domain.BalanceField
	Credit        domain.BalanceField
	ReferenceType domain.ReferenceType
	ReferenceID   uuid.UUID
	Description   string
	ProfitDate    *time.Time
}

type Ledger struct {
	accounts accountStore
	journal  journalStore
	now      func() time.Time
}

func New(accounts accountStore, journal journalStore) *Ledger {
	return &Ledger{
		accounts: accounts,
		journal:  journal,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Post locks the user's account for the rest of tx, applies p and appends its
// journal entry. The caller owns commit and rollback.
func (l *Ledger) Post(ctx context.Context, tx *sql.Tx, p Posting) (*domain.JournalEntry, *domain.Account, error) {
	if !p.Type.IsValid() {
		return nil, nil, fmt.Errorf("Post: transaction type %q: %w", p.Type, domain.ErrInvalidRequest)
	}

	acct, err := l.accounts.LockForUser(ctx, tx, p.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("Post: %w", err)
	}

	before := acct.Balance
	magnitude := p.Amount.Abs()
	if p.Debit != 0 {
		if err := acct.Debit(magnitude, p.Debit); err != nil {
			return nil, nil, fmt.Errorf("Post: %s %s for user %s: %w", p.Type, magnitude, p.UserID, err)
		}
	}
	if p.Credit != 0 {
		acct.Credit(magnitude, p.Credit)
	}
	if !acct.Consistent() {
		return nil, nil, fmt.Errorf("Post: %s would split balance for user %s: %w", p.Type, p.UserID, domain.ErrInvalidState)
	}

	entry := &domain.JournalEntry{
		ID:              uuid.New(),
		UserID:          p.UserID,
		TransactionType: p.Type,
		Amount:          p.Amount,
		BalanceBefore:   before,
		BalanceAfter:    acct.Balance,
		ReferenceType:   p.ReferenceType,
		ReferenceID:     p.ReferenceID,
		Description:     p.Description,
		ProfitDate:      p.ProfitDate,
		CreatedAt:       l.now(),
	}
	if _, err := l.journal.Append(ctx, tx, entry); err != nil {
		return nil, nil, fmt.Errorf("Post: %w", err)
	}

	if p.Debit != 0 || p.Credit != 0 {
		if err := l.accounts.UpdateBalances(ctx, tx, acct); err != nil {
			return nil, nil, fmt.Errorf("Post: %w", err)
		}
	}

	return entry, acct, nil
}
