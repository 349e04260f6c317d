package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// NowMillisExpr returns a SQL expression evaluating to the datastore's current time in epoch milliseconds
func NowMillisExpr(tx *gorm.DB) string {
	if tx.Dialector.Name() == "sqlite" {
		return "CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)"
	}
	return "(EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT"
}

// NowMillis reads the datastore clock
func NowMillis(tx *gorm.DB) (int64, error) {
	var now int64
	if err := tx.Raw("SELECT " + NowMillisExpr(tx)).Scan(&now).Error; err != nil {
		return 0, fmt.Errorf("read datastore clock: %w", err)
	}
	return now, nil
}

// ForUpdate adds an exclusive row lock to the next query. SQLite ignores it; its writers are already serialized.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// IsUniqueViolation reports whether err came from a unique constraint
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
