package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fwojciec/ragdoc/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_Open(t *testing.T) {
	t.Parallel()

	t.Run("creates schema on first open", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(":memory:")
		err := db.Open()
		require.NoError(t, err)
		defer db.Close()

		ctx := context.Background()
		for _, table := range []string{"sources", "sections", "chunks", "conversations", "turns"} {
			var n int
			err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
			require.NoError(t, err, table)
		}
	})

	t.Run("reopening an existing database keeps its data", func(t *testing.T) {
		t.Parallel()

		dbPath := filepath.Join(t.TempDir(), "reopen.db")
		ctx := context.Background()

		db := sqlite.NewDB(dbPath)
		require.NoError(t, db.Open())
		_, err := db.ExecContext(ctx, "INSERT INTO sources (id, url, created_at) VALUES ('s1', 'https://x', '2024-01-01T00:00:00Z')")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		db = sqlite.NewDB(dbPath)
		require.NoError(t, db.Open())
		defer db.Close()

		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&n))
		require.Equal(t, 1, n)
	})

	t.Run("fails when the directory does not exist", func(t *testing.T) {
		t.Parallel()

		require.Error(t, sqlite.NewDB(filepath.Join(t.TempDir(), "missing", "ragdoc.db")).Open())
	})

	t.Run("uses write-ahead logging on disk", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(filepath.Join(t.TempDir(), "wal.db"))
		require.NoError(t, db.Open())
		defer db.Close()

		var mode string
		require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
	})

	t.Run("records the schema version", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)

		var version int
		require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&version))
		assert.Equal(t, 1, version)
	})

	t.Run("refuses a database written by a newer schema", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "future.db")
		db := sqlite.NewDB(path)
		require.NoError(t, db.Open())
		_, err := db.ExecContext(context.Background(), "PRAGMA user_version = 99")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		err = sqlite.NewDB(path).Open()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "newer than supported")
	})

	t.Run("closing an unopened database is a no-op", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, sqlite.NewDB(":memory:").Close())
	})
}

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	return db
}
