package repository

import (
	"context"
	"sync"
	"time"

	"github.com/vestibule/vestibule/internal/model"
)

// MemoryRepository keeps users in process memory.
// Used by tests and by DATABASE_DRIVER=memory for throwaway runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byEmail    map[string]*model.User
	byUsername map[string]*model.User
}

var _ UserStore = (*MemoryRepository)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		byEmail:    make(map[string]*model.User),
		byUsername: make(map[string]*model.User),
	}
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// CreateUser inserts a new user, enforcing email and username uniqueness.
func (r *MemoryRepository) CreateUser(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return ErrUsernameExists
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return ErrEmailExists
	}

	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now().UTC()

	stored := *user
	r.byEmail[stored.Email] = &stored
	r.byUsername[stored.Username] = &stored

	return nil
}

// FindUserByEmail retrieves a user by their email address.
func (r *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *user
	return &found, nil
}

// FindUserByUsername retrieves a user by their username.
func (r *MemoryRepository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *user
	return &found, nil
}

// Len returns the number of stored users.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}
