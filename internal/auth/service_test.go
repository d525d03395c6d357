package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type stubRepo struct {
	users map[string]*User
}

func (r *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, internalShared.ErrNotFound
	}
	return u, nil
}

func (r *stubRepo) FindByID(_ context.Context, id int64) (*User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, internalShared.ErrNotFound
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("rahasia-kantor")
	require.NoError(t, err)
	repo := &stubRepo{users: map[string]*User{
		"budi@saldo.id": {
			ID: 1, Email: "budi@saldo.id", Name: "Budi",
			PasswordHash: hash, Role: internalShared.RoleAdmin, IsActive: true,
		},
		"sari@saldo.id": {
			ID: 2, Email: "sari@saldo.id", Name: "Sari",
			PasswordHash: hash, Role: internalShared.RoleUser, IsActive: false,
		},
	}}
	return NewService(repo)
}

func TestAuthenticateSuccess(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Authenticate(context.Background(), "budi@saldo.id", "rahasia-kantor")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, internalShared.RoleAdmin, user.Role)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "budi@saldo.id", "salah")
	require.ErrorIs(t, err, internalShared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "nobody@saldo.id", "rahasia-kantor")
	require.ErrorIs(t, err, internalShared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "sari@saldo.id", "rahasia-kantor")
	require.ErrorIs(t, err, internalShared.ErrInvalidCredentials)
}
