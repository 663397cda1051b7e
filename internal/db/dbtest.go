package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTest opens a migrated database in a per-test temp directory.
func OpenTest(t testing.TB) *sql.DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}
