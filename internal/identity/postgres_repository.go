package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DBTX is the query surface shared by a pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the repository needs.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresRepository implements Store using PostgreSQL.
type PostgresRepository struct {
	pool Pool
	db   DBTX
}

// NewPostgresRepository builds a Postgres-backed user store.
func NewPostgresRepository(pool Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

// Create inserts a new user and returns it with its assigned ID.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, hashed_password, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, user.Username, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return User{}, oops.Code("USER_EXISTS").
				With("username", user.Username).
				Wrap(ErrUserExists)
		}
		return User{}, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return user, nil
}

// FindByUsername fetches a user by username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := r.db.QueryRow(ctx, `
		SELECT id, username, hashed_password, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(ErrNotFound)
	}
	if err != nil {
		return User{}, oops.Code("USER_LOOKUP_FAILED").
			With("username", username).
			Wrap(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// WithinSession runs fn inside a transaction.
func (r *PostgresRepository) WithinSession(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("USER_SESSION_FAILED").With("operation", "begin").Wrap(err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // release only
		}
	}()

	if err := fn(&PostgresRepository{pool: r.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("USER_SESSION_FAILED").With("operation", "commit").Wrap(err)
	}
	committed = true
	return nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
