// Package testutil holds helpers shared by unit and integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vestibule/vestibule/internal/model"
	"github.com/vestibule/vestibule/internal/repository"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// ResetUsersSchema rolls every bundled migration back and re-applies it,
// leaving an empty users table.
func ResetUsersSchema(ctx context.Context, databaseURL string) error {
	migrator, err := repository.NewPostgresMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Reset(ctx); err != nil {
		return fmt.Errorf("reset users schema: %w", err)
	}
	if _, err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("recreate users schema: %w", err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Int64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%1_000_000, seq.Add(1))
}

// NewTestUser returns an unsaved user with unique username and email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	name := UniqueID("user")
	return &model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo",
	}
}
