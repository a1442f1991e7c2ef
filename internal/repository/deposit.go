package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const depositColumns = `id, user_id, amount, tx_hash, status, failure_reason, created_at, confirmed_at`

const depositTxHashConstraint = "deposits_tx_hash_key"

type DepositRepository struct {
	db *sql.DB
}

func NewDepositRepository(db *sql.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) Create(ctx context.Context, d *domain.Deposit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deposits (id, user_id, amount, tx_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.UserID, d.Amount, d.TxHash, d.Status, d.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, depositTxHashConstraint) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateTxHash)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE id = $1`, id,
	)
	d, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return d, nil
}

func (r *DepositRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Deposit, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE id = $1 FOR UPDATE`, id,
	)
	d, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return d, nil
}

// MarkConfirmed only moves a pending deposit; a zero row count means the
// deposit was settled by someone else.
func (r *DepositRepository) MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, tx, "MarkConfirmed",
		`UPDATE deposits SET status = $1, confirmed_at = $2 WHERE id = $3 AND status = $4`,
		domain.DepositStatusConfirmed, at, id, domain.DepositStatusPending,
	)
}

func (r *DepositRepository) MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string) error {
	return r.transition(ctx, tx, "MarkFailed",
		`UPDATE deposits SET status = $1, failure_reason = $2 WHERE id = $3 AND status = $4`,
		domain.DepositStatusFailed, reason, id, domain.DepositStatusPending,
	)
}

func (r *DepositRepository) transition(ctx context.Context, tx *sql.Tx, op, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadySettled)
	}
	return nil
}

func scanDeposit(s scanner) (*domain.Deposit, error) {
	var d domain.Deposit
	err := s.Scan(
		&d.ID, &d.UserID, &d.Amount, &d.TxHash, &d.Status,
		&d.FailureReason, &d.CreatedAt, &d.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
