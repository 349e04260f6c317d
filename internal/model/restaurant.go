package model

import (
	"strings"
	"time"
)

// Restaurant is the tenant. Outlet id lists map aggregator storefronts onto it.
type Restaurant struct {
	ID              uint      `json:"id" gorm:"primarykey"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null"`
	Slug            string    `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Timezone        string    `json:"timezone" gorm:"type:varchar(64)"`
	ZomatoOutletIDs string    `json:"zomato_outlet_ids" gorm:"type:text;comment:'comma separated'"`
	SwiggyOutletIDs string    `json:"swiggy_outlet_ids" gorm:"type:text;comment:'comma separated'"`
	IsActive        bool      `json:"is_active" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OutletIDs returns the configured outlet ids for a platform
func (r *Restaurant) OutletIDs(platform string) []string {
	var raw string
	switch platform {
	case PlatformZomato:
		raw = r.ZomatoOutletIDs
	case PlatformSwiggy:
		raw = r.SwiggyOutletIDs
	default:
		return nil
	}
	return SplitCSV(raw)
}

// SplitCSV splits a comma separated list, trimming blanks
func SplitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Table is a physical dining table. Identity is immutable; availability is staff controlled.
type Table struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	TenantID    uint      `json:"tenant_id" gorm:"not null;uniqueIndex:idx_tables_tenant_number,priority:1"`
	TableNumber string    `json:"table_number" gorm:"type:varchar(20);not null;uniqueIndex:idx_tables_tenant_number,priority:2"`
	Capacity    int       `json:"capacity" gorm:"not null"`
	IsAvailable bool      `json:"is_available" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
