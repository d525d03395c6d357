package auth

import (
	"time"

	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// User represents an application login.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         internalShared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
