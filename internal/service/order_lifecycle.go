package service

import (
	"context"
	"errors"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
	"tableorder-service/pkg/database"
	"tableorder-service/pkg/logger"
	"tableorder-service/pkg/messaging"
	"tableorder-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled, model.StatusPreparing},
	model.StatusConfirmed: {model.StatusPreparing, model.StatusCancelled},
	model.StatusPreparing: {model.StatusReady},
	model.StatusReady:     {model.StatusServed},
	model.StatusServed:    {model.StatusCompleted},
}

// Failed may be retried; Approved and Refunded are terminal.
var paymentTransitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentPending:   {model.PaymentRequested, model.PaymentApproved, model.PaymentFailed},
	model.PaymentRequested: {model.PaymentApproved, model.PaymentFailed},
	model.PaymentFailed:    {model.PaymentRequested, model.PaymentApproved},
}

var unsettledPayments = []model.PaymentStatus{model.PaymentPending, model.PaymentRequested, model.PaymentFailed}

// CanTransition reports whether order status may move from one value to another
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether payment status may move from one value to another
func CanTransitionPayment(from, to model.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus validates a client supplied status
func ParseOrderStatus(raw string) (model.OrderStatus, error) {
	status := model.OrderStatus(raw)
	switch status {
	case model.StatusPending, model.StatusConfirmed, model.StatusPreparing, model.StatusReady,
		model.StatusServed, model.StatusCompleted, model.StatusCancelled:
		return status, nil
	}
	return "", apperror.BadRequest("invalid order status %q", raw)
}

// ParsePaymentStatus validates a client supplied payment status
func ParsePaymentStatus(raw string) (model.PaymentStatus, error) {
	status := model.PaymentStatus(raw)
	switch status {
	case model.PaymentPending, model.PaymentRequested, model.PaymentApproved, model.PaymentFailed, model.PaymentRefunded:
		return status, nil
	}
	return "", apperror.BadRequest("invalid payment status %q", raw)
}

// UpdateOrderStatus applies one status transition. Cancelling goes through CancelOrder.
// Completing a served order may close its session.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, tenantID uint, orderID uint, to model.OrderStatus) (*model.Order, error) {
	if to == model.StatusCancelled {
		result, err := s.CancelOrder(ctx, tenantID, orderID)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	}

	log := logger.FromContext(ctx).With(zap.Uint("order_id", orderID), zap.String("to", string(to)))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(order.OrderStatus, to) {
			return apperror.BadRequest("cannot change order status from %s to %s", order.OrderStatus, to)
		}
		if err := tx.Model(order).Update("order_status", to).Error; err != nil {
			return apperror.Internal("update order status", err)
		}
		if to == model.StatusCompleted && order.SessionID != nil {
			return s.maybeCloseSession(ctx, tx, *order.SessionID)
		}
		return nil
	})
	prometheus.RecordTransition("order", string(to), err == nil)
	if err != nil {
		logFailure(log, "Order status update failed", err)
		return nil, err
	}

	order, err := s.GetOrderByID(ctx, &tenantID, orderID)
	if err != nil {
		return nil, err
	}
	log.Info("Order status updated")
	s.publish(ctx, messaging.EventOrderStatusChanged, order, false)
	return order, nil
}

// UpdatePaymentStatus applies one payment transition. Approval settles the whole session bill:
// every uncancelled sibling becomes Approved, and siblings already ready or served are completed.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, tenantID uint, orderID uint, to model.PaymentStatus, method *string) (*model.Order, error) {
	log := logger.FromContext(ctx).With(zap.Uint("order_id", orderID), zap.String("to", string(to)))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if !CanTransitionPayment(order.PaymentStatus, to) {
			return apperror.BadRequest("cannot change payment status from %s to %s", order.PaymentStatus, to)
		}

		updates := map[string]any{"payment_status": to}
		if method != nil && *method != "" {
			updates["payment_method"] = *method
		}

		if to != model.PaymentApproved {
			if err := tx.Model(order).Updates(updates).Error; err != nil {
				return apperror.Internal("update payment status", err)
			}
			return nil
		}

		if order.OrderStatus == model.StatusCancelled {
			return apperror.BadRequest("cannot approve payment for a cancelled order")
		}
		if order.OrderStatus != model.StatusReady && order.OrderStatus != model.StatusServed {
			return apperror.BadRequest("cannot approve payment while order is %s", order.OrderStatus)
		}

		updates["order_status"] = model.StatusCompleted
		if err := tx.Model(order).Updates(updates).Error; err != nil {
			return apperror.Internal("approve payment", err)
		}
		if order.SessionID == nil {
			return nil
		}

		siblings := tx.Model(&model.Order{}).
			Where("session_id = ? AND id <> ?", *order.SessionID, order.ID).
			Session(&gorm.Session{})
		if err := siblings.
			Where("order_status <> ? AND payment_status IN ?", model.StatusCancelled, unsettledPayments).
			Update("payment_status", model.PaymentApproved).Error; err != nil {
			return apperror.Internal("settle session orders", err)
		}
		if err := siblings.
			Where("order_status IN ?", []model.OrderStatus{model.StatusReady, model.StatusServed}).
			Update("order_status", model.StatusCompleted).Error; err != nil {
			return apperror.Internal("complete session orders", err)
		}
		return s.maybeCloseSession(ctx, tx, *order.SessionID)
	})
	prometheus.RecordTransition("payment", string(to), err == nil)
	if err != nil {
		logFailure(log, "Payment status update failed", err)
		return nil, err
	}

	order, err := s.GetOrderByID(ctx, &tenantID, orderID)
	if err != nil {
		return nil, err
	}
	log.Info("Payment status updated")
	s.publish(ctx, messaging.EventPaymentChanged, order, false)
	return order, nil
}

// CancelResult reports whether the order row was removed or kept as cancelled
type CancelResult struct {
	Order   *model.Order
	Deleted bool
}

// CancelOrder cancels a pending or confirmed order. A pending addon is deleted with its items;
// anything else is kept with status cancelled. Cancelling a regular order expires its session
// once nothing open remains on it.
func (s *OrderService) CancelOrder(ctx context.Context, tenantID uint, orderID uint) (*CancelResult, error) {
	log := logger.FromContext(ctx).With(zap.Uint("order_id", orderID))
	result := &CancelResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(order.OrderStatus, model.StatusCancelled) {
			return apperror.BadRequest("cannot cancel order in status %s", order.OrderStatus)
		}

		if order.OrderType == model.OrderTypeAddon && order.OrderStatus == model.StatusPending {
			if err := tx.Where("order_id = ?", order.ID).Delete(&model.OrderItem{}).Error; err != nil {
				return apperror.Internal("delete order items", err)
			}
			if err := tx.Delete(order).Error; err != nil {
				return apperror.Internal("delete order", err)
			}
			order.OrderStatus = model.StatusCancelled
			result.Order = order
			result.Deleted = true
			return nil
		}

		if err := tx.Model(order).Update("order_status", model.StatusCancelled).Error; err != nil {
			return apperror.Internal("cancel order", err)
		}
		result.Order = order

		if order.OrderType != model.OrderTypeRegular || order.SessionID == nil {
			return nil
		}
		open, err := openOrders(tx, *order.SessionID)
		if err != nil {
			return apperror.Internal("check session orders", err)
		}
		if open == 0 {
			if err := s.sessions.WithTx(tx).ExpireSession(ctx, *order.SessionID); err != nil {
				return apperror.Internal("expire session", err)
			}
			log.Info("Session expired after cancellation", zap.Uint("session_id", *order.SessionID))
		}
		return nil
	})
	prometheus.RecordTransition("order", string(model.StatusCancelled), err == nil)
	if err != nil {
		logFailure(log, "Order cancellation failed", err)
		return nil, err
	}

	if !result.Deleted {
		order, err := s.GetOrderByID(ctx, &tenantID, orderID)
		if err != nil {
			return nil, err
		}
		result.Order = order
	}
	log.Info("Order cancelled", zap.Bool("deleted", result.Deleted))
	s.publish(ctx, messaging.EventOrderCancelled, result.Order, result.Deleted)
	return result, nil
}

// maybeCloseSession starts the receipt grace period once every uncancelled order is completed and paid
func (s *OrderService) maybeCloseSession(ctx context.Context, tx *gorm.DB, sessionID uint) error {
	open, err := openOrders(tx, sessionID)
	if err != nil {
		return apperror.Internal("check session orders", err)
	}
	if open > 0 {
		return nil
	}
	sessions := s.sessions.WithTx(tx)
	if err := sessions.SetGracePeriod(ctx, sessionID, sessions.GracePeriod()); err != nil {
		return apperror.Internal("close session", err)
	}
	logger.FromContext(ctx).Info("Session settled", zap.Uint("session_id", sessionID))
	return nil
}

// openOrders counts uncancelled orders on the session that are not both completed and approved
func openOrders(tx *gorm.DB, sessionID uint) (int64, error) {
	var open int64
	err := tx.Model(&model.Order{}).
		Where("session_id = ? AND order_status <> ?", sessionID, model.StatusCancelled).
		Where("NOT (order_status = ? AND payment_status = ?)", model.StatusCompleted, model.PaymentApproved).
		Count(&open).Error
	return open, err
}

func lockOrder(tx *gorm.DB, tenantID uint, orderID uint) (*model.Order, error) {
	var order model.Order
	err := database.ForUpdate(tx).Where("tenant_id = ?", tenantID).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("order %d not found", orderID)
	}
	if err != nil {
		return nil, apperror.Internal("load order", err)
	}
	return &order, nil
}
