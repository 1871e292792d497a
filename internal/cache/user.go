package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vestibule/vestibule/internal/auth"
	"github.com/vestibule/vestibule/internal/model"
)

const (
	// userCachePrefix is the Redis key prefix for cached user records.
	userCachePrefix = "user:"
	// defaultUserTTL applies when no TTL is configured.
	defaultUserTTL = 10 * time.Minute
)

// Lookup kinds used in cache keys.
const (
	byEmail    = "email"
	byUsername = "username"
)

// cachedUser is the JSON form of a user stored in Redis.
// PasswordHash is carried explicitly because model.User hides it from JSON.
type cachedUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"` // unix millis
}

// userKey builds the Redis key for a lookup. The value is hashed so raw
// emails never appear in key names.
func userKey(kind, value string) string {
	return userCachePrefix + kind + ":" + auth.QuickHash(value)
}

func encodeUser(u *model.User) ([]byte, error) {
	return json.Marshal(cachedUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC().UnixMilli(),
	})
}

func decodeUser(data []byte) (*model.User, error) {
	var cached cachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &model.User{
		ID:           cached.ID,
		Username:     cached.Username,
		Email:        cached.Email,
		PasswordHash: cached.PasswordHash,
		CreatedAt:    time.UnixMilli(cached.CreatedAt).UTC(),
	}, nil
}

// GetUser retrieves a cached user by lookup kind and value.
// Returns nil if not found (cache miss).
func (c *Cache) GetUser(ctx context.Context, kind, value string) (*model.User, error) {
	data, err := c.client.Get(ctx, userKey(kind, value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	user, err := decodeUser(data)
	if err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}
	return user, nil
}

// SetUser caches a user under both its email and username keys.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, userKey(byEmail, user.Email), data, c.ttl)
	pipe.Set(ctx, userKey(byUsername, user.Username), data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache user: %w", err)
	}
	return nil
}
