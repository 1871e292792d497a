package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestibule/vestibule/internal/model"
)

// runUserStoreContract exercises the behavior every UserStore must share.
func runUserStoreContract(t *testing.T, newStore func(t *testing.T) UserStore) {
	t.Run("create assigns id and timestamp", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user := &model.User{Username: "alice_1", Email: "alice@example.com", PasswordHash: "hash-a"}
		require.NoError(t, store.CreateUser(ctx, user))

		assert.Positive(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())

		second := &model.User{Username: "bob_2", Email: "bob@example.com", PasswordHash: "hash-b"}
		require.NoError(t, store.CreateUser(ctx, second))
		assert.Greater(t, second.ID, user.ID)
	})

	t.Run("find by email and username", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user := &model.User{Username: "carol", Email: "carol@example.com", PasswordHash: "hash-c"}
		require.NoError(t, store.CreateUser(ctx, user))

		byEmail, err := store.FindUserByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, "carol", byEmail.Username)
		assert.Equal(t, "hash-c", byEmail.PasswordHash)

		byUsername, err := store.FindUserByUsername(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byUsername.ID)
		assert.Equal(t, "carol@example.com", byUsername.Email)
	})

	t.Run("missing users", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.FindUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = store.FindUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreateUser(ctx, &model.User{Username: "dave", Email: "dave@example.com", PasswordHash: "h"}))
		err := store.CreateUser(ctx, &model.User{Username: "dave_two", Email: "dave@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("duplicate username", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreateUser(ctx, &model.User{Username: "erin", Email: "erin@example.com", PasswordHash: "h"}))
		err := store.CreateUser(ctx, &model.User{Username: "erin", Email: "erin2@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("concurrent duplicates resolve to one row", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const attempts = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.CreateUser(ctx, &model.User{
					Username:     fmt.Sprintf("racer_%d", i),
					Email:        "race@example.com",
					PasswordHash: "h",
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrEmailExists):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, attempts-1, conflicts)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(context.Background()))
	})
}
