package service

import (
	"context"
	"errors"
	"time"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
	"tableorder-service/pkg/logger"
	"tableorder-service/pkg/messaging"
	"tableorder-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrDuplicateExternalOrder means the platform order is already recorded, typically by an
// overlapping poll or push
var ErrDuplicateExternalOrder = errors.New("external order already recorded")

// CreateExternalOrder inserts an already priced aggregator order and its items in one
// transaction, allocating the order number the same way dine-in admission does.
func (s *OrderService) CreateExternalOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	log := logger.FromContext(ctx).With(zap.Uint("tenant_id", order.TenantID))
	defer prometheus.TrackDBOperation("create_external_order")(time.Now())

	items := order.Items
	order.Items = nil

	policy := s.retry
	policy.Permanent = func(tx *gorm.DB, _ error) error {
		return externalDuplicate(tx, order)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.insertWithNumber(ctx, tx, order, policy); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperror.Internal("insert order items", err)
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateExternalOrder) {
		log.Debug("External order already recorded")
		return nil, err
	}
	if err != nil {
		logFailure(log, "External order insert failed", err)
		return nil, err
	}

	created, err := s.GetOrderByID(ctx, &order.TenantID, order.ID)
	if err != nil {
		return nil, err
	}
	prometheus.RecordOrderCreated(string(created.OrderType))
	s.publish(ctx, messaging.EventOrderCreated, created, false)
	return created, nil
}

// Publish emits an order event after a change made outside this service has committed
func (s *OrderService) Publish(ctx context.Context, eventType string, order *model.Order) {
	s.publish(ctx, eventType, order, false)
}

// externalDuplicate tells a clash on the external key apart from an order number collision.
// Only the latter is worth another number.
func externalDuplicate(tx *gorm.DB, order *model.Order) error {
	if order.ExternalOrderID == nil || order.ExternalPlatform == nil {
		return nil
	}
	var existing int64
	err := tx.Model(&model.Order{}).
		Where("external_order_id = ? AND external_platform = ?", *order.ExternalOrderID, *order.ExternalPlatform).
		Count(&existing).Error
	if err != nil {
		return apperror.Internal("check external order", err)
	}
	if existing == 0 {
		return nil
	}
	return &apperror.Error{Kind: apperror.KindConflict, Message: "external order already recorded", Err: ErrDuplicateExternalOrder}
}
