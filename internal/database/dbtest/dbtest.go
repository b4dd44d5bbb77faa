// Package dbtest opens throwaway in-memory SQLite databases for tests.
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/trentd187/beach-club/internal/database"
)

// Open returns a migrated, empty database that lives as long as the test.
//
// The pool is pinned to one connection: every new connection to ":memory:" would
// otherwise get its own empty database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	// SQLite leaves foreign keys off unless asked, and the cascade and SET NULL rules are
	// part of what the tests check. The silent logger keeps test output readable.
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	// With one connection, concurrent test goroutines queue for it instead of each seeing
	// a fresh empty database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// Tests build the schema from the models, the same path as clubctl migrate --auto.
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
