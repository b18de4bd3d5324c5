package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrateAppliesOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	calls := 0
	migrations := []Migration{
		{
			Version:     20260101000000,
			Description: "create widgets",
			Up: func(tx *sql.Tx) error {
				calls++
				_, err := tx.Exec("CREATE TABLE IF NOT EXISTS widgets (id TEXT PRIMARY KEY)")
				return err
			},
		},
	}

	require.NoError(t, Migrate(context.Background(), db, migrations))
	require.NoError(t, Migrate(context.Background(), db, migrations))
	assert.Equal(t, 1, calls)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, count)
}
