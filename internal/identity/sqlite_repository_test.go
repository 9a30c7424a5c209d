package identity_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/authfront/authfront/internal/identity"
	"github.com/authfront/authfront/internal/migrations"
)

func newSQLiteRepository(t *testing.T) *identity.SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(context.Background(), db, migrations.SQLite)
	require.NoError(t, err)
	return identity.NewSQLiteRepository(db)
}

func TestSQLiteRepositoryCreateAndFind(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)

	created, err := repo.Create(ctx, identity.User{Username: "alice", PasswordHash: "hash", CreatedAt: createdAt})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)
	assert.True(t, createdAt.Equal(found.CreatedAt))

	_, err = repo.FindByUsername(ctx, "bob")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestSQLiteRepositoryUniqueUsername(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, identity.User{Username: "alice", PasswordHash: "first"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, identity.User{Username: "alice", PasswordHash: "second"})
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrUserExists)

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", found.PasswordHash)
}

func TestSQLiteRepositorySessionRollsBack(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	abort := errors.New("abort")

	err := repo.WithinSession(ctx, func(r identity.Repository) error {
		if _, err := r.Create(ctx, identity.User{Username: "carol", PasswordHash: "h"}); err != nil {
			return err
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	_, err = repo.FindByUsername(ctx, "carol")
	assert.ErrorIs(t, err, identity.ErrNotFound, "insert must not survive a rolled back session")
}

func TestSQLiteRepositorySessionCommits(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	err := repo.WithinSession(ctx, func(r identity.Repository) error {
		_, err := r.Create(ctx, identity.User{Username: "dave", PasswordHash: "h"})
		return err
	})
	require.NoError(t, err)

	_, err = repo.FindByUsername(ctx, "dave")
	require.NoError(t, err)
	require.NoError(t, repo.Ping(ctx))
}
