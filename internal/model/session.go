package model

import "time"

// Session is one visit of a table. ExpiresAt is epoch milliseconds on the datastore clock.
type Session struct {
	ID            uint      `json:"-" gorm:"primarykey"`
	TableID       uint      `json:"-" gorm:"not null;index;uniqueIndex:idx_sessions_active_table,where:is_active = true"`
	SessionToken  string    `json:"session_token" gorm:"type:char(64);uniqueIndex;not null"`
	CustomerName  *string   `json:"customer_name"`
	CustomerPhone *string   `json:"customer_phone"`
	IsActive      bool      `json:"is_active" gorm:"not null;index"`
	ExpiresAt     int64     `json:"expires_at" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}
