package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

type WithdrawalService struct {
	withdrawals withdrawalRepository
	users       userRepository
	ledger      poster
	db          *sql.DB
	now         func() time.Time
}

func NewWithdrawalService(withdrawals withdrawalRepository, users userRepository, l poster, db *sql.DB) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		users:       users,
		ledger:      l,
		db:          db,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequestWithdrawal reserves amount from the user's available funds and
// queues the withdrawal for admin review.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, toAddress string) (*domain.Withdrawal, error) {
	log := logging.FromContext(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("RequestWithdrawal: %w", domain.ErrInvalidAmount)
	}
	toAddress = strings.TrimSpace(toAddress)
	if toAddress == "" {
		return nil, fmt.Errorf("RequestWithdrawal: destination address required: %w", domain.ErrInvalidRequest)
	}

	if _, err := activeUser(ctx, s.users, userID); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("RequestWithdrawal: begin tx", err)
	}
	defer tx.Rollback()

	w := &domain.Withdrawal{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		ToAddress: toAddress,
		Status:    domain.WithdrawalStatusPending,
		CreatedAt: s.now(),
	}

	if _, _, err := s.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        userID,
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        amount.Neg(),
		Debit:         domain.FieldBalance | domain.FieldAvailable,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   w.ID,
		Description:   fmt.Sprintf("withdrawal to %s reserved", toAddress),
	}); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	if err := s.withdrawals.Create(ctx, tx, w); err != nil {
		return nil, fmt.Errorf("RequestWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("RequestWithdrawal: commit", err)
	}

	log.Info("withdrawal requested", "withdrawal_id", w.ID, "user_id", userID, "amount", amount)
	return w, nil
}

func (s *WithdrawalService) GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetWithdrawal: %w", err)
	}
	return w, nil
}

// ApproveWithdrawal marks a reserved withdrawal as paid out on chain. The
// reservation entry already carries -amount, so the completion entry is a
// zero-amount marker and withdrawal totals count each withdrawal once.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, id uuid.UUID, txHash string) (*domain.Withdrawal, error) {
	log := logging.FromContext(ctx)

	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, fmt.Errorf("ApproveWithdrawal: tx hash required: %w", domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("ApproveWithdrawal: begin tx", err)
	}
	defer tx.Rollback()

	w, err := s.lockPending(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	inUse, err := s.withdrawals.TxHashInUse(ctx, tx, txHash)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}
	if inUse {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", domain.ErrDuplicateTxHash)
	}

	now := s.now()
	if err := s.withdrawals.MarkCompleted(ctx, tx, w.ID, txHash, now); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	if _, _, err := s.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        w.UserID,
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        decimal.Zero,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   w.ID,
		Description:   fmt.Sprintf("withdrawal of %s completed tx %s (reserved at request)", w.Amount, txHash),
	}); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("ApproveWithdrawal: commit", err)
	}

	w.Status = domain.WithdrawalStatusCompleted
	w.TxHash = &txHash
	w.ProcessedAt = &now

	log.Info("withdrawal approved", "withdrawal_id", w.ID, "user_id", w.UserID, "tx_hash", txHash)
	return w, nil
}

// RejectWithdrawal returns the reserved funds to the user.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*domain.Withdrawal, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("RejectWithdrawal: begin tx", err)
	}
	defer tx.Rollback()

	w, err := s.lockPending(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("RejectWithdrawal: %w", err)
	}

	entry, acct, err := s.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        w.UserID,
		Type:          domain.TransactionTypeRefund,
		Amount:        w.Amount,
		Credit:        domain.FieldBalance | domain.FieldAvailable,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   w.ID,
		Description:   "withdrawal rejected: " + reason,
	})
	if err != nil {
		return nil, fmt.Errorf("RejectWithdrawal: %w", err)
	}

	now := s.now()
	if err := s.withdrawals.MarkRejected(ctx, tx, w.ID, reason, now); err != nil {
		return nil, fmt.Errorf("RejectWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("RejectWithdrawal: commit", err)
	}

	w.Status = domain.WithdrawalStatusRejected
	w.RejectionReason = &reason
	w.ProcessedAt = &now

	log.Info("withdrawal rejected, funds restored",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"refund_entry_id", entry.ID,
		"balance_after", acct.Balance,
		"reason", reason,
	)
	return w, nil
}

func (s *WithdrawalService) lockPending(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lockPending: %w", err)
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, fmt.Errorf("lockPending: withdrawal is %s: %w", w.Status, domain.ErrInvalidState)
	}
	return w, nil
}
