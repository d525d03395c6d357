package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. Every failure path
// returns the same error so callers cannot probe for existing accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, internalShared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, internalShared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, internalShared.ErrInvalidCredentials
	}
	return user, nil
}

// Lookup loads a user by id for session refreshes.
func (s *Service) Lookup(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// HashPassword produces a bcrypt hash for seeding and user management.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
