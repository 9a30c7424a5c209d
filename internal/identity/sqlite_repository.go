package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Store on an embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
	q  sqlQuerier
}

// NewSQLiteRepository builds a SQLite-backed user store. The schema is
// expected to exist already (see the migrations package).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, q: db}
}

// Create inserts a new user and returns it with its assigned ID.
func (r *SQLiteRepository) Create(ctx context.Context, user User) (User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password, created_at) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, user.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return User{}, oops.Code("USER_EXISTS").
				With("username", user.Username).
				Wrap(ErrUserExists)
		}
		return User{}, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, oops.Code("USER_CREATE_FAILED").
			With("operation", "read insert id").
			Wrap(err)
	}
	user.ID = id
	return user, nil
}

// FindByUsername fetches a user by username.
func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	var (
		user      User
		createdAt string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, username, hashed_password, created_at FROM users WHERE username = ?`,
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(ErrNotFound)
	}
	if err != nil {
		return User{}, oops.Code("USER_LOOKUP_FAILED").
			With("username", username).
			Wrap(err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return User{}, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "parse created_at").
			Wrap(err)
	}
	return user, nil
}

// WithinSession runs fn inside a transaction.
func (r *SQLiteRepository) WithinSession(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Code("USER_SESSION_FAILED").With("operation", "begin").Wrap(err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback() //nolint:errcheck // release only
		}
	}()

	if err := fn(&SQLiteRepository{db: r.db, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return oops.Code("USER_SESSION_FAILED").With("operation", "commit").Wrap(err)
	}
	committed = true
	return nil
}

// Ping checks connectivity.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
