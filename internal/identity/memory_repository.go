package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	session sync.Mutex

	mu     sync.RWMutex
	users  map[string]User
	nextID int64
}

// NewMemoryRepository builds an in-memory user store for tests and local development.
func NewMemoryRepository() Store {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Username]; exists {
		return User{}, ErrUserExists
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.Username] = user
	return user, nil
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// WithinSession serializes sessions so a lookup followed by an insert is atomic.
func (r *memoryRepository) WithinSession(ctx context.Context, fn func(Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.session.Lock()
	defer r.session.Unlock()
	return fn(r)
}

func (r *memoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
