package db

import (
	"path/filepath"
	"testing"
)

// setupTestDB opens a fresh database in a per-test temp directory and closes
// it on cleanup.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "corridor_test.db")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
