// Package testutil provides test utilities: an in-memory database harness
// with automatic migration and cleanup, plus domain fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/kasbahsoft/comptaflow/internal/service"
	"github.com/kasbahsoft/comptaflow/internal/storage"
)

// TestDB wraps a fully migrated in-memory database for one test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database, migrated to the latest
// schema (including the seeded PCM chart), and registers cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}
