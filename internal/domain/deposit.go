package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
	DepositStatusFailed    DepositStatus = "failed"
)

type Deposit struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Amount        decimal.Decimal
	TxHash        string
	Status        DepositStatus
	FailureReason *string
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}
