package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusClosed    UserStatus = "closed"
)

// User is the ledger's view of an account holder. Credentials live with the
// identity service; here only the status matters.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Status    UserStatus
	CreatedAt time.Time
}

// Active reports whether the holder may start new money movements. Settling
// movements already in flight is allowed regardless.
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}
