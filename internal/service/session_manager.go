package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"tableorder-service/internal/model"
	"tableorder-service/pkg/config"
	"tableorder-service/pkg/database"
	"tableorder-service/pkg/logger"
	"tableorder-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sessionTokenBytes = 32

// SessionManager opens, reuses and closes table sessions.
// Expiry is always computed and compared on the datastore clock.
type SessionManager struct {
	db    *gorm.DB
	ttl   time.Duration
	grace time.Duration
}

func NewSessionManager(db *gorm.DB, cfg config.SessionConfig) *SessionManager {
	return &SessionManager{db: db, ttl: cfg.TTL, grace: cfg.GracePeriod}
}

// WithTx returns a SessionManager running on tx
func (m *SessionManager) WithTx(tx *gorm.DB) *SessionManager {
	clone := *m
	clone.db = tx
	return &clone
}

// GracePeriod is the configured post-payment receipt window
func (m *SessionManager) GracePeriod() time.Duration {
	return m.grace
}

// GetOrCreateSession reuses the table's active, unexpired session even when it has no
// orders yet, and otherwise opens a new one. Callers must hold the table row lock.
func (m *SessionManager) GetOrCreateSession(ctx context.Context, tableID uint) (*model.Session, bool, error) {
	existing, err := m.ActiveSession(ctx, tableID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	db := m.db.WithContext(ctx)
	// An active row past its expiry would otherwise block the one-active-session index.
	if err := db.Model(&model.Session{}).
		Where("table_id = ? AND is_active = ?", tableID, true).
		Update("is_active", false).Error; err != nil {
		return nil, false, fmt.Errorf("retire stale sessions: %w", err)
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, false, err
	}
	nowMillis, err := database.NowMillis(db)
	if err != nil {
		return nil, false, err
	}

	session := model.Session{
		TableID:      tableID,
		SessionToken: token,
		IsActive:     true,
		ExpiresAt:    nowMillis + m.ttl.Milliseconds(),
	}
	if err := db.Create(&session).Error; err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	prometheus.RecordSessionCreated()
	logger.FromContext(ctx).Info("Session opened",
		zap.Uint("table_id", tableID),
		zap.Uint("session_id", session.ID),
		zap.Int64("expires_at", session.ExpiresAt))
	return &session, true, nil
}

// ValidateSession returns the session for token while its stored expiry has not elapsed,
// including sessions already deactivated into their grace period. Unknown or expired tokens yield nil.
func (m *SessionManager) ValidateSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	db := m.db.WithContext(ctx)

	var session model.Session
	err := db.Where("session_token = ? AND expires_at > "+database.NowMillisExpr(db), token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	return &session, nil
}

// UpdateCustomerDetails sets whichever of name and phone are non-nil
func (m *SessionManager) UpdateCustomerDetails(ctx context.Context, sessionID uint, name, phone *string) error {
	updates := map[string]any{}
	if name != nil {
		updates["customer_name"] = *name
	}
	if phone != nil {
		updates["customer_phone"] = *phone
	}
	if len(updates) == 0 {
		return nil
	}
	if err := m.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", sessionID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update customer details: %w", err)
	}
	return nil
}

// ExpireSession deactivates the session and ends its validity now
func (m *SessionManager) ExpireSession(ctx context.Context, sessionID uint) error {
	db := m.db.WithContext(ctx)
	err := db.Model(&model.Session{}).Where("id = ?", sessionID).Updates(map[string]any{
		"is_active":  false,
		"expires_at": gorm.Expr(database.NowMillisExpr(db)),
	}).Error
	if err != nil {
		return fmt.Errorf("expire session %d: %w", sessionID, err)
	}
	prometheus.RecordSessionClosed("expired")
	return nil
}

// SetGracePeriod deactivates the session and shortens its expiry to now+grace,
// keeping the token resolvable for receipts. An expiry already sooner is kept.
func (m *SessionManager) SetGracePeriod(ctx context.Context, sessionID uint, grace time.Duration) error {
	db := m.db.WithContext(ctx)
	deadline := database.NowMillisExpr(db) + " + ?"
	err := db.Model(&model.Session{}).Where("id = ?", sessionID).Updates(map[string]any{
		"is_active": false,
		"expires_at": gorm.Expr(
			"CASE WHEN expires_at < "+deadline+" THEN expires_at ELSE "+deadline+" END",
			grace.Milliseconds(), grace.Milliseconds(),
		),
	}).Error
	if err != nil {
		return fmt.Errorf("set grace period on session %d: %w", sessionID, err)
	}
	prometheus.RecordSessionClosed("settled")
	return nil
}

// ClearTable force-closes every open session on the table and returns how many were closed
func (m *SessionManager) ClearTable(ctx context.Context, tableID uint) (int64, error) {
	db := m.db.WithContext(ctx)
	result := db.Model(&model.Session{}).
		Where("table_id = ? AND is_active = ?", tableID, true).
		Updates(map[string]any{
			"is_active":  false,
			"expires_at": gorm.Expr(database.NowMillisExpr(db)),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("clear table %d: %w", tableID, result.Error)
	}
	if result.RowsAffected > 0 {
		prometheus.RecordSessionClosed("cleared")
	}
	return result.RowsAffected, nil
}

// ActiveSession returns the table's active, unexpired session or nil
func (m *SessionManager) ActiveSession(ctx context.Context, tableID uint) (*model.Session, error) {
	db := m.db.WithContext(ctx)
	var session model.Session
	err := db.Where("table_id = ? AND is_active = ? AND expires_at > "+database.NowMillisExpr(db), tableID, true).
		Order("id DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return &session, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
