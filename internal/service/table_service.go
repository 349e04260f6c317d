package service

import (
	"context"
	"errors"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
	"tableorder-service/pkg/database"
	"tableorder-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TableService runs staff operations on tables and their sessions
type TableService struct {
	db       *gorm.DB
	sessions *SessionManager
}

func NewTableService(db *gorm.DB, sessions *SessionManager) *TableService {
	return &TableService{db: db, sessions: sessions}
}

// ClearTable force-closes the table's sessions. Last writer wins against concurrent admissions.
func (s *TableService) ClearTable(ctx context.Context, tenantID uint, tableID uint) (int64, error) {
	log := logger.FromContext(ctx).With(zap.Uint("table_id", tableID))

	var cleared int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockTable(tx, tenantID, tableID); err != nil {
			return err
		}
		n, err := s.sessions.WithTx(tx).ClearTable(ctx, tableID)
		if err != nil {
			return apperror.Internal("clear table", err)
		}
		cleared = n
		return nil
	})
	if err != nil {
		logFailure(log, "Clear table failed", err)
		return 0, err
	}
	log.Info("Table cleared", zap.Int64("sessions_closed", cleared))
	return cleared, nil
}

// MovedSession describes the outcome of MoveTableSession
type MovedSession struct {
	SessionToken string `json:"session_token"`
	FromTable    string `json:"from_table"`
	ToTable      string `json:"to_table"`
	OrdersMoved  int64  `json:"orders_moved"`
}

// MoveTableSession moves the source table's active session, with its unfinished orders, to
// an available target table that has no active session. Both rows are locked in id order.
func (s *TableService) MoveTableSession(ctx context.Context, tenantID uint, sourceID, targetID uint) (*MovedSession, error) {
	log := logger.FromContext(ctx).With(zap.Uint("source_table_id", sourceID), zap.Uint("target_table_id", targetID))
	if sourceID == targetID {
		return nil, apperror.BadRequest("source and target table must differ")
	}

	var moved MovedSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, second := sourceID, targetID
		if second < first {
			first, second = second, first
		}
		locked := map[uint]*model.Table{}
		for _, id := range []uint{first, second} {
			table, err := lockTable(tx, tenantID, id)
			if err != nil {
				return err
			}
			locked[id] = table
		}
		source, target := locked[sourceID], locked[targetID]

		if !target.IsAvailable {
			return apperror.Conflict("table %s is not available", target.TableNumber)
		}

		sessions := s.sessions.WithTx(tx)
		session, err := sessions.ActiveSession(ctx, source.ID)
		if err != nil {
			return apperror.Internal("find source session", err)
		}
		if session == nil {
			return apperror.NotFound("table %s has no active session", source.TableNumber)
		}
		occupied, err := sessions.ActiveSession(ctx, target.ID)
		if err != nil {
			return apperror.Internal("find target session", err)
		}
		if occupied != nil {
			return apperror.Conflict("table %s already has an active session", target.TableNumber)
		}
		// stale rows on the target would block the one-active-session index
		if err := tx.Model(&model.Session{}).
			Where("table_id = ? AND is_active = ?", target.ID, true).
			Update("is_active", false).Error; err != nil {
			return apperror.Internal("retire stale sessions", err)
		}

		if err := tx.Model(session).Update("table_id", target.ID).Error; err != nil {
			return apperror.Internal("move session", err)
		}
		result := tx.Model(&model.Order{}).
			Where("session_id = ? AND order_status NOT IN ?", session.ID,
				[]model.OrderStatus{model.StatusCompleted, model.StatusCancelled}).
			Update("table_id", target.ID)
		if result.Error != nil {
			return apperror.Internal("move orders", result.Error)
		}

		moved = MovedSession{
			SessionToken: session.SessionToken,
			FromTable:    source.TableNumber,
			ToTable:      target.TableNumber,
			OrdersMoved:  result.RowsAffected,
		}
		return nil
	})
	if err != nil {
		logFailure(log, "Move table session failed", err)
		return nil, err
	}
	log.Info("Table session moved", zap.Int64("orders_moved", moved.OrdersMoved))
	return &moved, nil
}

func lockTable(tx *gorm.DB, tenantID, tableID uint) (*model.Table, error) {
	var table model.Table
	err := database.ForUpdate(tx).Where("tenant_id = ?", tenantID).First(&table, tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("table %d not found", tableID)
	}
	if err != nil {
		return nil, apperror.Internal("lock table", err)
	}
	return &table, nil
}
