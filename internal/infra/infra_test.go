package infra

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authfront/authfront/internal/identity"
)

func TestDriverFor(t *testing.T) {
	tests := []struct {
		url     string
		want    Driver
		wantErr bool
	}{
		{url: "", want: DriverMemory},
		{url: "postgres://u:p@localhost:5432/auth", want: DriverPostgres},
		{url: "postgresql://localhost/auth", want: DriverPostgres},
		{url: "sqlite:///./auth.db", want: DriverSQLite},
		{url: "sqlite::memory:", want: DriverSQLite},
		{url: "file:auth.db?cache=shared", want: DriverSQLite},
		{url: "mysql://localhost/auth", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := DriverFor(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "./auth.db", sqliteDSN("sqlite:///./auth.db"))
	assert.Equal(t, "/var/lib/auth.db", sqliteDSN("sqlite:////var/lib/auth.db"))
	assert.Equal(t, ":memory:", sqliteDSN("sqlite::memory:"))
	assert.Equal(t, ":memory:", sqliteDSN("sqlite://"))
	assert.Equal(t, "file:auth.db?mode=rwc", sqliteDSN("file:auth.db?mode=rwc"))
}

func TestOpenDatabaseMemory(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDatabase(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverMemory, db.Driver)
	versions, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)
	require.NoError(t, db.Store.Ping(ctx))
}

func TestOpenDatabaseSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.db")

	db, err := OpenDatabase(ctx, "sqlite:///"+path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverSQLite, db.Driver)

	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	created, err := db.Store.Create(ctx, identity.User{
		Username:     "alice",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = db.Store.Create(ctx, identity.User{Username: "alice", PasswordHash: "x"})
	assert.True(t, errors.Is(err, identity.ErrUserExists))
}

func TestOpenDatabaseRejectsUnknownScheme(t *testing.T) {
	_, err := OpenDatabase(context.Background(), "mongodb://localhost")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	t.Run("url form", func(t *testing.T) {
		client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
		require.NoError(t, err)
		defer client.Close()
		require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	})

	t.Run("bare address", func(t *testing.T) {
		client, err := NewRedisClient(ctx, mr.Addr())
		require.NoError(t, err)
		defer client.Close()
		assert.Equal(t, "v", client.Get(ctx, "k").Val())
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := NewRedisClient(ctx, "")
		assert.Error(t, err)
	})
}
