package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const journalColumns = `id, user_id, transaction_type, amount, balance_before, balance_after,
	reference_type, reference_id, description, profit_date, created_at`

const profitPerDayConstraint = "uq_journal_profit_per_day"

// JournalRepository is the append-only store of balance-affecting events.
// It exposes no update or delete.
type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Append(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO journal_entries (
			id, user_id, transaction_type, amount, balance_before, balance_after,
			reference_type, reference_id, description, profit_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.UserID, entry.TransactionType, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter,
		entry.ReferenceType, entry.ReferenceID, entry.Description,
		nullableDateParam(entry.ProfitDate), entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, profitPerDayConstraint) {
			return uuid.Nil, fmt.Errorf("Append: profit already recorded for %s: %w", entry.ReferenceID, domain.ErrDuplicate)
		}
		return uuid.Nil, fmt.Errorf("Append: %w", err)
	}
	return entry.ID, nil
}

// Sum adds up the signed amounts of a user's entries of one type, optionally
// restricted to a single referenced entity. Withdrawals count once, at
// reservation; a rejected withdrawal is offset by its refund entry, so net
// withdrawn is Sum(withdrawal) + Sum(refund).
func (r *JournalRepository) Sum(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, referenceID *uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM journal_entries
		WHERE user_id = $1 AND transaction_type = $2
		AND ($3::uuid IS NULL OR reference_id = $3::uuid)`,
		userID, txType, referenceID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Sum: %w", err)
	}
	return total, nil
}

// OriginalPrincipal returns the amount of the earliest investment entry for
// investmentID.
func (r *JournalRepository) OriginalPrincipal(ctx context.Context, q Querier, investmentID uuid.UUID) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT amount FROM journal_entries
		WHERE reference_type = $1 AND reference_id = $2 AND transaction_type = $3
		ORDER BY created_at, id LIMIT 1`,
		domain.ReferenceTypeInvestment, investmentID, domain.TransactionTypeInvestment,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("OriginalPrincipal: %w", domain.ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("OriginalPrincipal: %w", err)
	}
	return amount.Abs(), nil
}

func (r *JournalRepository) ProfitExists(ctx context.Context, q Querier, investmentID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM journal_entries
			WHERE reference_type = $1 AND reference_id = $2
			AND transaction_type = $3 AND profit_date = $4
		)`,
		domain.ReferenceTypeInvestment, investmentID, domain.TransactionTypeProfit, dateParam(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ProfitExists: %w", err)
	}
	return exists, nil
}

// NetEffect is the sum of every entry's balance movement for the user, which
// must equal the cached account balance.
func (r *JournalRepository) NetEffect(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var net decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance_after - balance_before), 0)
		FROM journal_entries WHERE user_id = $1`, userID,
	).Scan(&net)
	if err != nil {
		return decimal.Zero, fmt.Errorf("NetEffect: %w", err)
	}
	return net, nil
}

// ActivePrincipal sums the original principal of the user's active investments.
func (r *JournalRepository) ActivePrincipal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(j.amount), 0)
		FROM journal_entries j
		JOIN investments i ON i.id = j.reference_id
		WHERE j.user_id = $1 AND j.reference_type = $2 AND j.transaction_type = $3
		AND i.status = $4`,
		userID, domain.ReferenceTypeInvestment, domain.TransactionTypeInvestment, domain.InvestmentStatusActive,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ActivePrincipal: %w", err)
	}
	return total, nil
}

// ListByUser pages through a user's entries newest first. An empty txType
// returns every type.
func (r *JournalRepository) ListByUser(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, limit, offset int) ([]domain.JournalEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_entries
		WHERE user_id = $1 AND ($2 = '' OR transaction_type = $2)`,
		userID, string(txType),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries
		WHERE user_id = $1 AND ($2 = '' OR transaction_type = $2)
		ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		userID, string(txType), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	entries, err := collectJournalEntries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	return entries, total, nil
}

func (r *JournalRepository) ListByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) ([]domain.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at, id`,
		refType, refID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByReference: %w", err)
	}
	defer rows.Close()

	entries, err := collectJournalEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByReference: %w", err)
	}
	return entries, nil
}

func collectJournalEntries(rows *sql.Rows) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanJournalEntry(s scanner) (*domain.JournalEntry, error) {
	var e domain.JournalEntry
	err := s.Scan(
		&e.ID, &e.UserID, &e.TransactionType, &e.Amount,
		&e.BalanceBefore, &e.BalanceAfter,
		&e.ReferenceType, &e.ReferenceID, &e.Description,
		&e.ProfitDate, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
