package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// Investment is a capital commitment earning ProfitRate percent per day.
// Amount is for display; profit is always computed from the principal
// recorded in the journal.
type Investment struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Level          int
	ProfitRate     decimal.Decimal
	Status         InvestmentStatus
	NextProfitDate time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DueOn reports whether the investment is owed profit on date.
func (i *Investment) DueOn(date time.Time) bool {
	return i.Status == InvestmentStatusActive && !i.NextProfitDate.After(date)
}
