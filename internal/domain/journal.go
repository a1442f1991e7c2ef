package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeInvestment TransactionType = "investment"
	TransactionTypeProfit     TransactionType = "profit"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeRefund,
		TransactionTypeInvestment, TransactionTypeProfit:
		return true
	}
	return false
}

type ReferenceType string

const (
	ReferenceTypeDeposit    ReferenceType = "deposit"
	ReferenceTypeWithdrawal ReferenceType = "withdrawal"
	ReferenceTypeInvestment ReferenceType = "investment"
)

// JournalEntry is one immutable balance-affecting event. BalanceBefore and
// BalanceAfter hold the owner's real account balance around the event.
type JournalEntry struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TransactionType TransactionType
	Amount          decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	ReferenceType   ReferenceType
	ReferenceID     uuid.UUID
	Description     string
	ProfitDate      *time.Time
	CreatedAt       time.Time
}

// Effect is the change this entry made to the account balance.
func (e *JournalEntry) Effect() decimal.Decimal {
	return e.BalanceAfter.Sub(e.BalanceBefore)
}
