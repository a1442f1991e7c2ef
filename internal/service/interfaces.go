package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
)

type userRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type accountRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
}

type depositRepository interface {
	Create(ctx context.Context, d *domain.Deposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deposit, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Deposit, error)
	MarkConfirmed(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string) error
}

type withdrawalRepository interface {
	Create(ctx context.Context, tx *sql.Tx, w *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Withdrawal, error)
	TxHashInUse(ctx context.Context, tx *sql.Tx, txHash string) (bool, error)
	MarkCompleted(ctx context.Context, tx *sql.Tx, id uuid.UUID, txHash string, at time.Time) error
	MarkRejected(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string, at time.Time) error
}

type investmentRepository interface {
	Create(ctx context.Context, tx *sql.Tx, inv *domain.Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
}

type journalRepository interface {
	Sum(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, referenceID *uuid.UUID) (decimal.Decimal, error)
	NetEffect(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ActivePrincipal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, limit, offset int) ([]domain.JournalEntry, int, error)
}

type profitRunRepository interface {
	History(ctx context.Context, limit int) ([]domain.ProfitRun, error)
}

type poster interface {
	Post(ctx context.Context, tx *sql.Tx, p ledger.Posting) (*domain.JournalEntry, *domain.Account, error)
}
