package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/saldo-id/saldo/internal/shared"
)

func newStore(t *testing.T, ttl time.Duration) (*shared.SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionStore(client, ttl), mr
}

func TestIssueAndLoadRoundTrip(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, shared.Actor{UserID: 7, Email: "budi@saldo.id", Role: shared.RoleAdmin})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	actor, err := store.Load(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(7), actor.UserID)
	require.Equal(t, "budi@saldo.id", actor.Email)
	require.Equal(t, shared.RoleAdmin, actor.Role)
}

func TestLoadUnknownToken(t *testing.T) {
	store, _ := newStore(t, time.Hour)

	_, err := store.Load(context.Background(), "never-issued")
	require.ErrorIs(t, err, shared.ErrSessionNotFound)

	_, err = store.Load(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestRevokeDeletesSession(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, shared.Actor{UserID: 1, Email: "sari@saldo.id", Role: shared.RoleUser})
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, token))
	_, err = store.Load(ctx, token)
	require.ErrorIs(t, err, shared.ErrSessionNotFound)

	// revoking again is a no-op
	require.NoError(t, store.Revoke(ctx, token))
}

func TestSessionExpiresByTTL(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, shared.Actor{UserID: 2, Email: "viewer@saldo.id", Role: shared.RoleViewer})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Load(ctx, token)
	require.ErrorIs(t, err, shared.ErrSessionNotFound)
}
