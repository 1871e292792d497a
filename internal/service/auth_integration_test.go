//go:build integration

package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestibule/vestibule/internal/auth"
	"github.com/vestibule/vestibule/internal/cache"
	"github.com/vestibule/vestibule/internal/repository"
	"github.com/vestibule/vestibule/internal/testutil"
)

// Run with -p 1: the Postgres tests share one schema.
func TestIntegrationAuthService_PostgresFlow(t *testing.T) {
	databaseURL := testutil.RequireEnv(t, "DATABASE_URL")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, testutil.ResetUsersSchema(ctx, databaseURL))

	repo, err := repository.New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	var users repository.UserStore = repo
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c, err := cache.New(ctx, redisURL, time.Minute)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		require.NoError(t, testutil.FlushRedis(ctx, c.Client()))
		users = cache.NewCachedStore(repo, c, logger)
	}

	hasher, err := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1})
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:   []byte("integration-secret-integration-s"),
		Issuer:   "http://localhost",
		Audience: "http://localhost",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	svc := NewAuthService(users, hasher, tokens, nil, logger)
	u := testutil.NewTestUser(t)

	reg, err := svc.Register(ctx, u.Username, u.Email, "longenough1")
	require.NoError(t, err)
	require.True(t, reg.Success, reg.Message)

	// Second lookup goes through the cache when one is configured.
	again, err := svc.Register(ctx, u.Username+"_x", u.Email, "longenough1")
	require.NoError(t, err)
	assert.Equal(t, MsgEmailInUse, again.Message)

	login, err := svc.Login(ctx, u.Email, "longenough1")
	require.NoError(t, err)
	require.True(t, login.Success)

	claims, err := svc.ValidateToken(ctx, "Bearer "+login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, claims.Data.UserID)
	assert.Equal(t, u.Username, claims.Data.Username)
}
