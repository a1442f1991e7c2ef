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

const withdrawalColumns = `id, user_id, amount, to_address, status, tx_hash,
	rejection_reason, created_at, processed_at`

const withdrawalTxHashConstraint = "withdrawals_tx_hash_key"

type WithdrawalRepository struct {
	db *sql.DB
}

func NewWithdrawalRepository(db *sql.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *sql.Tx, w *domain.Withdrawal) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO withdrawals (id, user_id, amount, to_address, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.UserID, w.Amount, w.ToAddress, w.Status, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

func (r *WithdrawalRepository) TxHashInUse(ctx context.Context, tx *sql.Tx, txHash string) (bool, error) {
	var inUse bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM withdrawals WHERE tx_hash = $1)`, txHash,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("TxHashInUse: %w", err)
	}
	return inUse, nil
}

func (r *WithdrawalRepository) MarkCompleted(ctx context.Context, tx *sql.Tx, id uuid.UUID, txHash string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1, tx_hash = $2, processed_at = $3
		WHERE id = $4 AND status = $5`,
		domain.WithdrawalStatusCompleted, txHash, at, id, domain.WithdrawalStatusPending,
	)
	if err != nil {
		if isUniqueViolation(err, withdrawalTxHashConstraint) {
			return fmt.Errorf("MarkCompleted: %w", domain.ErrDuplicateTxHash)
		}
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	return requireOneRow(res, "MarkCompleted")
}

func (r *WithdrawalRepository) MarkRejected(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1, rejection_reason = $2, processed_at = $3
		WHERE id = $4 AND status = $5`,
		domain.WithdrawalStatusRejected, reason, at, id, domain.WithdrawalStatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkRejected: %w", err)
	}
	return requireOneRow(res, "MarkRejected")
}

func requireOneRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidState)
	}
	return nil
}

func scanWithdrawal(s scanner) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := s.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.ToAddress, &w.Status, &w.TxHash,
		&w.RejectionReason, &w.CreatedAt, &w.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
