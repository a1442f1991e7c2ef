package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Amount          decimal.Decimal
	ToAddress       string
	Status          WithdrawalStatus
	TxHash          *string
	RejectionReason *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}
