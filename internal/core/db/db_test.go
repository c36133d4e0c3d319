package db

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB returns a migrated in-memory SQLite database and its queries.
func openTestDB(t *testing.T) (*sqlx.DB, *Queries) {
	t.Helper()
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = MigrateUp(db)
	require.NoError(t, err)

	q, err := LoadQueries(db)
	require.NoError(t, err)
	return db, q
}

func TestOpen(t *testing.T) {
	t.Run("sqlite file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logview.db")
		db, err := Open("sqlite://" + path)
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, "sqlite3", db.DriverName())
	})

	t.Run("sqlite memory", func(t *testing.T) {
		db, err := Open("sqlite::memory:")
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	})

	for _, bad := range []string{"mysql://localhost/db", "://nope", "sqlite://"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := Open(bad)
			assert.Error(t, err)
		})
	}
}
