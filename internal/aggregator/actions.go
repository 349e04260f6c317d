package aggregator

import (
	"context"
	"errors"
	"slices"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
	"tableorder-service/pkg/logger"
	"tableorder-service/pkg/messaging"
	"tableorder-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// staffAction is one staff decision on an online order. The pending flag is always
// queued for the polling bridge client, and the direct call is a best-effort shortcut.
type staffAction struct {
	name   string
	code   int
	status model.OrderStatus
	call   func(ctx context.Context, order *model.Order) error
}

// Accept confirms an online order with the promised preparation time; zero uses the default
func (e *Engine) Accept(ctx context.Context, tenantID, orderID uint, prepMinutes int) (*model.Order, error) {
	if prepMinutes <= 0 {
		prepMinutes = e.defaultPrepTime
	}
	return e.apply(ctx, tenantID, orderID, map[string]any{"prep_time_minutes": prepMinutes}, staffAction{
		name:   "accept",
		code:   model.ActionAccept,
		status: model.StatusConfirmed,
		call: func(ctx context.Context, order *model.Order) error {
			return e.bridge.AcceptOrder(ctx, *order.ExternalPlatform, *order.ExternalOrderID, prepMinutes)
		},
	})
}

// MarkReady tells the platform the order can be picked up
func (e *Engine) MarkReady(ctx context.Context, tenantID, orderID uint) (*model.Order, error) {
	return e.apply(ctx, tenantID, orderID, nil, staffAction{
		name:   "mark_ready",
		code:   model.ActionReady,
		status: model.StatusReady,
		call: func(ctx context.Context, order *model.Order) error {
			return e.bridge.MarkReady(ctx, *order.ExternalPlatform, *order.ExternalOrderID)
		},
	})
}

// Reject declines an online order
func (e *Engine) Reject(ctx context.Context, tenantID, orderID uint) (*model.Order, error) {
	return e.apply(ctx, tenantID, orderID, nil, staffAction{
		name:   "reject",
		code:   model.ActionReject,
		status: model.StatusCancelled,
		call: func(ctx context.Context, order *model.Order) error {
			outlet := ""
			if order.ExternalOutletID != nil {
				outlet = *order.ExternalOutletID
			}
			return e.bridge.RejectOrder(ctx, *order.ExternalPlatform, outlet, *order.ExternalOrderID)
		},
	})
}

// apply queues the pending action, tries the bridge directly and sets the local status.
// Platform orders follow the vendor's lifecycle, not the dine-in transition table.
func (e *Engine) apply(ctx context.Context, tenantID, orderID uint, extra map[string]any, action staffAction) (*model.Order, error) {
	log := logger.FromContext(ctx).With(zap.Uint("order_id", orderID), zap.String("action", action.name))

	order, err := e.onlineOrder(ctx, tenantID, orderID)
	if err != nil {
		logFailure(log, "Online order action rejected", err)
		return nil, err
	}

	if order.PendingAction != model.ActionNone && order.PendingAction != action.code {
		// a successful direct call leaves its flag set, so replacing it is expected
		log.Warn("Replacing unconfirmed pending action",
			zap.Int("previous", order.PendingAction),
			zap.Int("next", action.code))
	}

	updates := map[string]any{"pending_action": action.code}
	for k, v := range extra {
		updates[k] = v
	}
	if err := e.db.WithContext(ctx).Model(order).Updates(updates).Error; err != nil {
		err = apperror.Internal("queue pending action", err)
		logFailure(log, "Online order action failed", err)
		return nil, err
	}

	if err := action.call(ctx, order); err != nil {
		log.Warn("Direct bridge call failed, left for the polling client", zap.Error(err))
	}

	if err := e.db.WithContext(ctx).Model(order).Update("order_status", action.status).Error; err != nil {
		prometheus.RecordTransition("online", string(action.status), false)
		err = apperror.Internal("update online order status", err)
		logFailure(log, "Online order action failed", err)
		return nil, err
	}
	prometheus.RecordTransition("online", string(action.status), true)

	updated, err := e.orders.GetOrderByID(ctx, &tenantID, orderID)
	if err != nil {
		return nil, err
	}
	log.Info("Online order action applied", zap.String("order_status", string(updated.OrderStatus)))
	e.orders.Publish(ctx, messaging.EventOrderStatusChanged, updated)
	return updated, nil
}

func (e *Engine) onlineOrder(ctx context.Context, tenantID, orderID uint) (*model.Order, error) {
	var order model.Order
	err := e.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("order %d not found", orderID)
	}
	if err != nil {
		return nil, apperror.Internal("load order", err)
	}
	if order.OrderType != model.OrderTypeOnline || order.ExternalPlatform == nil || order.ExternalOrderID == nil {
		return nil, apperror.BadRequest("order %d is not an online order", orderID)
	}
	if order.OrderStatus.Terminal() {
		return nil, apperror.BadRequest("order %d is already %s", orderID, order.OrderStatus)
	}
	return &order, nil
}

// PendingAction is what the polling bridge client still has to perform
type PendingAction struct {
	OrderID  string `json:"orderId"`
	ResID    string `json:"resId"`
	Status   int    `json:"status"`
	PrepTime int    `json:"prepTime"`
}

var pendingCodes = []int{model.ActionAccept, model.ActionReady, model.ActionReject}

// PendingActions lists queued actions for one outlet. An outlet no tenant lists yields none.
func (e *Engine) PendingActions(ctx context.Context, outletID string) ([]PendingAction, error) {
	tenants, err := e.tenants(ctx, nil)
	if err != nil {
		return nil, apperror.Internal("load tenants", err)
	}
	var tenant *model.Restaurant
	for i := range tenants {
		if slices.Contains(tenants[i].OutletIDs(model.PlatformZomato), outletID) ||
			slices.Contains(tenants[i].OutletIDs(model.PlatformSwiggy), outletID) {
			tenant = &tenants[i]
			break
		}
	}
	actions := []PendingAction{}
	if tenant == nil {
		return actions, nil
	}

	var orders []model.Order
	err = e.db.WithContext(ctx).
		Where("tenant_id = ? AND external_outlet_id = ? AND pending_action IN ?", tenant.ID, outletID, pendingCodes).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, apperror.Internal("list pending actions", err)
	}
	for _, o := range orders {
		prep := o.PrepTimeMinutes
		if prep <= 0 {
			prep = e.defaultPrepTime
		}
		actions = append(actions, PendingAction{
			OrderID:  *o.ExternalOrderID,
			ResID:    outletID,
			Status:   o.PendingAction,
			PrepTime: prep,
		})
	}
	return actions, nil
}

var confirmedStatus = map[int]model.OrderStatus{
	model.ConfirmedAccept: model.StatusConfirmed,
	model.ConfirmedReady:  model.StatusReady,
	model.ConfirmedReject: model.StatusCancelled,
}

// ConfirmAction records that the bridge client performed a queued action. Only the
// matching pending flag is cleared, so a late confirmation never undoes a newer action.
// Repeated confirmations succeed without changes. Platform may be empty while the
// external id is unique across platforms.
func (e *Engine) ConfirmAction(ctx context.Context, platform, externalOrderID string, code int) error {
	log := logger.FromContext(ctx).With(
		zap.String("platform", platform),
		zap.String("external_order_id", externalOrderID),
		zap.Int("code", code))

	status, ok := confirmedStatus[code]
	if !ok {
		return apperror.BadRequest("unknown confirmation code %d", code)
	}

	db := e.db.WithContext(ctx)
	query := db.Model(&model.Order{}).Where("external_order_id = ?", externalOrderID)
	if platform != "" {
		query = query.Where("external_platform = ?", platform)
	}
	var platforms []string
	if err := query.Distinct().Pluck("external_platform", &platforms).Error; err != nil {
		err = apperror.Internal("find external order", err)
		logFailure(log, "Bridge confirmation failed", err)
		return err
	}
	switch len(platforms) {
	case 0:
		return apperror.NotFound("external order %s not found", externalOrderID)
	case 1:
		platform = platforms[0]
	default:
		return apperror.BadRequest("external order %s exists on several platforms, platform is required", externalOrderID)
	}

	result := db.Model(&model.Order{}).
		Where("external_order_id = ? AND external_platform = ? AND pending_action = ?", externalOrderID, platform, code-1).
		Updates(map[string]any{"pending_action": model.ActionNone, "order_status": status})
	if result.Error != nil {
		err := apperror.Internal("confirm action", result.Error)
		logFailure(log, "Bridge confirmation failed", err)
		return err
	}
	if result.RowsAffected == 0 {
		log.Debug("Confirmation had nothing pending")
		return nil
	}
	log.Info("Bridge confirmed action", zap.String("order_status", string(status)))
	return nil
}

func logFailure(log *zap.Logger, msg string, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		log.Error(msg, zap.Error(err))
		return
	}
	log.Warn(msg, zap.Error(err))
}
