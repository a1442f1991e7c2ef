package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrAlreadySettled    = errors.New("already settled")
	ErrDuplicate         = errors.New("duplicate")
	ErrDuplicateTxHash   = fmt.Errorf("%w: tx hash already used", ErrDuplicate)
	ErrAlreadyRun        = errors.New("profit run already completed for date")
	ErrRunInProgress     = errors.New("profit run already in progress for date")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPersistence       = errors.New("persistence failure")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnknownLevel      = errors.New("unknown investment level")
)

// Persistence marks err as a storage failure while keeping the cause reachable.
func Persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
