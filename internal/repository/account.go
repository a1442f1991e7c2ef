package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const accountColumns = `id, user_id, balance, available_balance, invested_balance, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return a, nil
}

// LockForUser returns the user's account row locked for the rest of tx,
// creating an empty account first if the user has none yet.
func (r *AccountRepository) LockForUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Account, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("LockForUser: ensure: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 FOR UPDATE`, userID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("LockForUser: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("LockForUser: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) UpdateBalances(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts
		SET balance = $1, available_balance = $2, invested_balance = $3, updated_at = now()
		WHERE id = $4`,
		a.Balance, a.AvailableBalance, a.InvestedBalance, a.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalances: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalances: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalances: %w", domain.ErrNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.UserID,
		&a.Balance, &a.AvailableBalance, &a.InvestedBalance,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
