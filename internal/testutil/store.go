package testutil

import (
	"testing"

	"genstore/internal/database"
	"genstore/internal/store"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T, clock store.Clock) *database.SQLiteStore {
	t.Helper()
	return NewTestStoreWithBlob(t, clock, "")
}

// NewTestStoreWithBlob is NewTestStore with a legacy settings blob path,
// for exercising the settings import.
func NewTestStoreWithBlob(t *testing.T, clock store.Clock, legacyBlobPath string) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	st := database.NewSQLiteStoreFromDB(sqlDB, legacyBlobPath, clock)

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
