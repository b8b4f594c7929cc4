package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"github.com/yatube/yatube/internal/db"
)

// NewDB opens a private in-memory SQLite database with foreign keys enforced
// and the schema created from the models. It is closed when the test ends.
func NewDB(t *testing.T) *db.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	database, err := db.Open(sqlite.Open(dsn), "ERROR")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := database.DB.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { _ = database.Close() })
	return database
}
