package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"

	"gorm.io/gorm"
)

const (
	orderNumberDateLayout = "20060102"
	orderNumberSuffixLen  = 4
	maxDailySequence      = 9999
)

// NumberGenerator allocates human-facing order numbers. Uniqueness is enforced by the
// (tenant_id, order_number) index; callers retry on conflict.
type NumberGenerator interface {
	Next(ctx context.Context, tx *gorm.DB, tenantID uint) (string, error)
}

// DailySequence issues YYYYMMDD#### numbers in the tenant's local day
type DailySequence struct {
	defaultLocation *time.Location
	now             func() time.Time
}

// NewDailySequence uses defaultTimezone for tenants without a valid timezone of their own
func NewDailySequence(defaultTimezone string) (*DailySequence, error) {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load default timezone %q: %w", defaultTimezone, err)
	}
	return &DailySequence{defaultLocation: loc, now: time.Now}, nil
}

func (g *DailySequence) Next(ctx context.Context, tx *gorm.DB, tenantID uint) (string, error) {
	db := tx.WithContext(ctx)

	var timezone sql.NullString
	if err := db.Model(&model.Restaurant{}).Select("timezone").Where("id = ?", tenantID).Row().Scan(&timezone); err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("load tenant timezone: %w", err)
	}
	loc := g.defaultLocation
	if timezone.Valid && timezone.String != "" {
		if tenantLoc, err := time.LoadLocation(timezone.String); err == nil {
			loc = tenantLoc
		}
	}

	now := g.now()
	prefix := now.In(loc).Format(orderNumberDateLayout)

	var current sql.NullString
	err := db.Model(&model.Order{}).
		Select("MAX(order_number)").
		Where("tenant_id = ? AND order_number LIKE ?", tenantID, prefix+"%").
		Row().
		Scan(&current)
	if err != nil {
		return "", fmt.Errorf("read latest order number: %w", err)
	}

	return NextOrderNumber(prefix, current.String, now)
}

// NextOrderNumber increments the trailing counter of latest, which must share prefix or be empty.
// Past 9999 the suffix falls back to the millisecond clock so the number stays four digits;
// that value may collide and is resolved by the insert retry.
func NextOrderNumber(prefix, latest string, now time.Time) (string, error) {
	seq := 1
	if latest != "" {
		if len(latest) != len(prefix)+orderNumberSuffixLen {
			return "", apperror.Internal("malformed order number", fmt.Errorf("unexpected length in %q", latest))
		}
		n, err := strconv.Atoi(latest[len(prefix):])
		if err != nil {
			return "", apperror.Internal("malformed order number", err)
		}
		seq = n + 1
	}
	if seq > maxDailySequence {
		seq = int(now.UnixMilli() % (maxDailySequence + 1))
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}
