// Package testutil opens throwaway SQLite databases running the real migrations.
package testutil

import (
	"path/filepath"
	"testing"

	"tableorder-service/internal/model"
	"tableorder-service/pkg/database"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated database on a temp file. It holds a single
// connection, so concurrent transactions queue behind each other the way
// admissions queue behind the table row lock under PostgreSQL. Never query
// through the root handle while holding a transaction on it.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tableorder.db")
	db, err := database.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormlogger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture seeds the rows most tests need
type Fixture struct {
	Restaurant model.Restaurant
	Table      model.Table
	MenuItem   model.MenuItem
}

// Seed creates one active restaurant with one available table and one available menu item priced at price
func Seed(t *testing.T, db *gorm.DB, price string) Fixture {
	t.Helper()

	f := Fixture{
		Restaurant: model.Restaurant{Name: "Test Kitchen", Slug: "test-kitchen", Timezone: "UTC", IsActive: true},
	}
	MustCreate(t, db, &f.Restaurant)

	f.Table = model.Table{TenantID: f.Restaurant.ID, TableNumber: "8", Capacity: 4, IsAvailable: true}
	MustCreate(t, db, &f.Table)

	f.MenuItem = model.MenuItem{
		TenantID:    f.Restaurant.ID,
		Name:        "Paneer Tikka",
		Category:    "Starters",
		Price:       decimal.RequireFromString(price),
		IsAvailable: true,
	}
	MustCreate(t, db, &f.MenuItem)
	return f
}

// MustCreate inserts value or fails the test
func MustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
