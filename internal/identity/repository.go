package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrUserExists is returned when inserting a username that is already taken.
	ErrUserExists = errors.New("user exists")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
}

// Store is a Repository that can also scope several operations to one
// request-level handle.
type Store interface {
	Repository

	// WithinSession runs fn against a Repository bound to a single handle
	// (a transaction for SQL backends). The handle is committed when fn
	// returns nil and released on every other exit path, including panics.
	WithinSession(ctx context.Context, fn func(Repository) error) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
