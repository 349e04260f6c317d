package service

import (
	"context"
	"errors"
	"time"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultOrderLimit = 100
	maxOrderLimit     = 500
)

// OrderFilter narrows GetAllOrders. Zero fields are ignored.
type OrderFilter struct {
	TenantID     *uint
	SessionToken string
	SessionID    *uint
	TableID      *uint
	Statuses     []model.OrderStatus
	From         *time.Time
	To           *time.Time
	Limit        int
}

var kitchenStatuses = []model.OrderStatus{
	model.StatusPending,
	model.StatusConfirmed,
	model.StatusPreparing,
	model.StatusReady,
}

// GetOrderByID loads an order with its items. A non-nil tenantID restricts the lookup to that tenant.
func (s *OrderService) GetOrderByID(ctx context.Context, tenantID *uint, orderID uint) (*model.Order, error) {
	query := s.db.WithContext(ctx).Preload("Items", orderItemsByID)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var order model.Order
	if err := query.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order %d not found", orderID)
		}
		return nil, apperror.Internal("load order", err)
	}
	return &order, nil
}

// GetAllOrders lists orders newest first
func (s *OrderService) GetAllOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&model.Order{}).Preload("Items", orderItemsByID)

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.SessionToken != "" {
		query = query.Where("session_id IN (?)",
			db.Model(&model.Session{}).Select("id").Where("session_token = ?", filter.SessionToken))
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.TableID != nil {
		query = query.Where("table_id = ?", *filter.TableID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("order_status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	if limit > maxOrderLimit {
		limit = maxOrderLimit
	}

	var orders []model.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, apperror.Internal("list orders", err)
	}
	return orders, nil
}

// GetKitchenOrders returns the tenant's orders still being worked on, oldest first
func (s *OrderService) GetKitchenOrders(ctx context.Context, tenantID uint) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where("tenant_id = ? AND order_status IN ?", tenantID, kitchenStatuses).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, apperror.Internal("list kitchen orders", err)
	}
	return orders, nil
}

// OrderStats summarizes a tenant's orders. Revenue counts settled, uncancelled orders only.
type OrderStats struct {
	TotalOrders       int64                       `json:"total_orders"`
	PaidOrders        int64                       `json:"paid_orders"`
	Revenue           decimal.Decimal             `json:"revenue"`
	AverageOrderValue decimal.Decimal             `json:"average_order_value"`
	ByStatus          map[model.OrderStatus]int64 `json:"by_status"`
	ByType            map[model.OrderType]int64   `json:"by_type"`
}

// GetOrderStats aggregates orders created in [from, to); nil bounds are open
func (s *OrderService) GetOrderStats(ctx context.Context, tenantID uint, from, to *time.Time) (*OrderStats, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.Order{}).Where("tenant_id = ?", tenantID)
		if from != nil {
			q = q.Where("created_at >= ?", *from)
		}
		if to != nil {
			q = q.Where("created_at < ?", *to)
		}
		return q
	}

	stats := &OrderStats{
		Revenue:           decimal.Zero,
		AverageOrderValue: decimal.Zero,
		ByStatus:          map[model.OrderStatus]int64{},
		ByType:            map[model.OrderType]int64{},
	}

	var byStatus []struct {
		OrderStatus model.OrderStatus
		Count       int64
	}
	if err := scoped().Select("order_status, COUNT(*) AS count").Group("order_status").Scan(&byStatus).Error; err != nil {
		return nil, apperror.Internal("order stats by status", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[row.OrderStatus] = row.Count
		stats.TotalOrders += row.Count
	}

	var byType []struct {
		OrderType model.OrderType
		Count     int64
	}
	if err := scoped().Select("order_type, COUNT(*) AS count").Group("order_type").Scan(&byType).Error; err != nil {
		return nil, apperror.Internal("order stats by type", err)
	}
	for _, row := range byType {
		stats.ByType[row.OrderType] = row.Count
	}

	var paid struct {
		Count   int64
		Revenue decimal.NullDecimal
	}
	err := scoped().
		Select("COUNT(*) AS count, SUM(total_amount) AS revenue").
		Where("payment_status = ? AND order_status <> ?", model.PaymentApproved, model.StatusCancelled).
		Scan(&paid).Error
	if err != nil {
		return nil, apperror.Internal("order revenue", err)
	}
	stats.PaidOrders = paid.Count
	if paid.Revenue.Valid {
		stats.Revenue = paid.Revenue.Decimal.Round(2)
	}
	if paid.Count > 0 {
		stats.AverageOrderValue = stats.Revenue.Div(decimal.NewFromInt(paid.Count)).Round(2)
	}
	return stats, nil
}

// SessionReceipt is what a diner device may see: no internal ids
type SessionReceipt struct {
	Session *model.Session
	Orders  []model.Order
}

// GetSessionReceipt resolves a diner token while its stored expiry holds, grace period included
func (s *OrderService) GetSessionReceipt(ctx context.Context, token string) (*SessionReceipt, error) {
	session, err := s.validSession(ctx, token)
	if err != nil {
		return nil, err
	}
	orders, err := s.GetAllOrders(ctx, OrderFilter{SessionID: &session.ID, Limit: maxOrderLimit})
	if err != nil {
		return nil, err
	}
	return &SessionReceipt{Session: session, Orders: orders}, nil
}

// GetSessionOrders lists a diner token's orders newest first. Expired tokens are NotFound.
func (s *OrderService) GetSessionOrders(ctx context.Context, token string) ([]model.Order, error) {
	session, err := s.validSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.GetAllOrders(ctx, OrderFilter{SessionID: &session.ID})
}

func (s *OrderService) validSession(ctx context.Context, token string) (*model.Session, error) {
	session, err := s.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, apperror.Internal("validate session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("session not found or expired")
	}
	return session, nil
}

func orderItemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
