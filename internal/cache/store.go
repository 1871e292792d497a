package cache

import (
	"context"
	"log/slog"

	"github.com/vestibule/vestibule/internal/model"
	"github.com/vestibule/vestibule/internal/repository"
)

// userEntries is the subset of Cache used by CachedStore.
type userEntries interface {
	GetUser(ctx context.Context, kind, value string) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
}

// CachedStore is a read-through cache in front of a UserStore.
// Only hits are cached: a miss must always reach the store so a fresh
// registration is visible immediately. User records never change after
// insert, so cached entries cannot go stale.
type CachedStore struct {
	next   repository.UserStore
	cache  userEntries
	logger *slog.Logger
}

var _ repository.UserStore = (*CachedStore)(nil)

// NewCachedStore wraps next with the Redis cache.
func NewCachedStore(next repository.UserStore, cache *Cache, logger *slog.Logger) *CachedStore {
	return newCachedStore(next, cache, logger)
}

func newCachedStore(next repository.UserStore, cache userEntries, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{next: next, cache: cache, logger: logger}
}

// FindUserByEmail implements repository.UserStore.
func (s *CachedStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.find(ctx, byEmail, email, s.next.FindUserByEmail)
}

// FindUserByUsername implements repository.UserStore.
func (s *CachedStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.find(ctx, byUsername, username, s.next.FindUserByUsername)
}

func (s *CachedStore) find(
	ctx context.Context,
	kind, value string,
	load func(context.Context, string) (*model.User, error),
) (*model.User, error) {
	cached, err := s.cache.GetUser(ctx, kind, value)
	if err != nil {
		// Redis trouble degrades to a store read.
		s.logger.Warn("user cache read failed", "kind", kind, "error", err)
	} else if cached != nil && matches(cached, kind, value) {
		return cached, nil
	}

	user, err := load(ctx, value)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetUser(ctx, user); err != nil {
		s.logger.Warn("user cache write failed", "kind", kind, "error", err)
	}
	return user, nil
}

// matches guards against hash collisions in cache keys.
func matches(u *model.User, kind, value string) bool {
	if kind == byEmail {
		return u.Email == value
	}
	return u.Username == value
}

// CreateUser implements repository.UserStore. Writes go straight to the store.
func (s *CachedStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.next.CreateUser(ctx, user)
}

// Ping checks the store. Cache health is reported separately by readiness.
func (s *CachedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
