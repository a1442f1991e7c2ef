package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

// activeUser refuses suspended and closed holders.
func activeUser(ctx context.Context, users userRepository, id uuid.UUID) (*domain.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Active() {
		return nil, fmt.Errorf("user is %s: %w", u.Status, domain.ErrInvalidState)
	}
	return u, nil
}
