package db

import (
	"path/filepath"
	"testing"
)

// SetupTestJournal opens a SQLite journal in a temporary directory and
// closes it when the test ends.
func SetupTestJournal(t testing.TB) *SQLJournal {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Failed to open test journal: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Logf("Warning: Failed to close test journal: %v", err)
		}
	})
	return j
}
