package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"tableorder-service/internal/model"
	"tableorder-service/internal/service"
	"tableorder-service/pkg/bridge"
	"tableorder-service/pkg/logger"
	"tableorder-service/pkg/messaging"
	"tableorder-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeUnmatched = "unmatched"
	OutcomeFailed    = "failed"
)

// Bridge is the part of the aggregator relay the engine depends on
type Bridge interface {
	FetchOrders(ctx context.Context) ([]bridge.ExternalOrder, error)
	AcceptOrder(ctx context.Context, platform, orderID string, prepMinutes int) error
	MarkReady(ctx context.Context, platform, orderID string) error
	RejectOrder(ctx context.Context, platform, outletID, orderID string) error
}

// Engine reconciles aggregator orders into local orders and relays staff actions back
type Engine struct {
	db              *gorm.DB
	bridge          Bridge
	orders          *service.OrderService
	interval        time.Duration
	defaultPrepTime int
}

type EngineConfig struct {
	DB              *gorm.DB
	Bridge          Bridge
	Orders          *service.OrderService
	Interval        time.Duration
	DefaultPrepTime int
}

func NewEngine(cfg EngineConfig) *Engine {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	prep := cfg.DefaultPrepTime
	if prep <= 0 {
		prep = 30
	}
	return &Engine{
		db:              cfg.DB,
		bridge:          cfg.Bridge,
		orders:          cfg.Orders,
		interval:        interval,
		defaultPrepTime: prep,
	}
}

// SyncReport counts per-order outcomes of one run
type SyncReport struct {
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

func (r *SyncReport) add(outcome string) {
	switch outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeUnmatched:
		r.Unmatched++
	default:
		r.Failed++
	}
}

// Run polls the bridge until ctx is cancelled. Runs are not serialized against
// pushed batches; dedup on the external key makes reprocessing harmless.
func (e *Engine) Run(ctx context.Context) {
	log := logger.FromContext(ctx).With(zap.Duration("interval", e.interval))
	log.Info("Aggregator sync started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		if _, err := e.SyncOnce(ctx, nil); err != nil && ctx.Err() == nil {
			log.Warn("Aggregator sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("Aggregator sync stopped")
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce fetches current orders and reconciles them. A non-nil tenantID limits
// matching to that tenant so a staff-triggered sync never writes another tenant's orders.
func (e *Engine) SyncOnce(ctx context.Context, tenantID *uint) (*SyncReport, error) {
	defer prometheus.ObserveSyncRun(time.Now())

	tenants, err := e.tenants(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	report := &SyncReport{}
	if len(tenants) == 0 {
		logger.FromContext(ctx).Debug("No tenants configured for online orders")
		return report, nil
	}

	fetched, err := e.bridge.FetchOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch aggregator orders: %w", err)
	}
	e.process(ctx, tenants, fetched, report)
	return report, nil
}

// Ingest reconciles a pushed batch through the same per-order pipeline as a poll
func (e *Engine) Ingest(ctx context.Context, orders []bridge.ExternalOrder) (*SyncReport, error) {
	tenants, err := e.tenants(ctx, nil)
	if err != nil {
		return nil, err
	}
	report := &SyncReport{}
	e.process(ctx, tenants, orders, report)
	return report, nil
}

func (e *Engine) process(ctx context.Context, tenants []model.Restaurant, orders []bridge.ExternalOrder, report *SyncReport) {
	report.Fetched += len(orders)
	for _, ext := range orders {
		outcome, platform, err := e.processOne(ctx, tenants, ext)
		if err != nil {
			logger.FromContext(ctx).Error("Failed to process aggregator order",
				zap.String("platform", ext.Platform),
				zap.Error(err))
		}
		prometheus.RecordAggregatorOrder(platform, outcome)
		report.add(outcome)
	}
	logger.FromContext(ctx).Info("Aggregator orders reconciled",
		zap.Int("fetched", len(orders)),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("failed", report.Failed))
}

func (e *Engine) processOne(ctx context.Context, tenants []model.Restaurant, ext bridge.ExternalOrder) (string, string, error) {
	normalized, err := Normalize(ext)
	if err != nil {
		return OutcomeFailed, ext.Platform, err
	}
	log := logger.FromContext(ctx).With(
		zap.String("platform", normalized.Platform),
		zap.String("external_order_id", normalized.ExternalID),
		zap.String("outlet_id", normalized.OutletID))

	tenant := matchTenant(tenants, normalized.Platform, normalized.OutletID)
	if tenant == nil {
		log.Warn("No tenant for aggregator outlet, dropping order")
		return OutcomeUnmatched, normalized.Platform, nil
	}

	existing, err := e.findExternal(ctx, normalized.Platform, normalized.ExternalID)
	if err != nil {
		return OutcomeFailed, normalized.Platform, err
	}
	if existing != nil {
		outcome, err := e.refreshStatus(ctx, existing, normalized.RawStatus)
		return outcome, normalized.Platform, err
	}

	created, err := e.orders.CreateExternalOrder(ctx, normalized.toOrder(tenant.ID, ext.Payload, e.defaultPrepTime))
	if errors.Is(err, service.ErrDuplicateExternalOrder) {
		// a concurrent run inserted the same external order first
		log.Debug("Aggregator order already recorded")
		return OutcomeUnchanged, normalized.Platform, nil
	}
	if err != nil {
		return OutcomeFailed, normalized.Platform, err
	}
	log.Info("Aggregator order created",
		zap.Uint("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.Uint("tenant_id", tenant.ID))
	return OutcomeCreated, normalized.Platform, nil
}

// refreshStatus applies a vendor status change. Items are never re-synced.
func (e *Engine) refreshStatus(ctx context.Context, order *model.Order, rawStatus string) (string, error) {
	if order.RawStatus != nil && *order.RawStatus == rawStatus {
		return OutcomeUnchanged, nil
	}
	status := MapStatus(rawStatus)
	err := e.db.WithContext(ctx).Model(order).Updates(map[string]any{
		"order_status": status,
		"raw_status":   rawStatus,
	}).Error
	if err != nil {
		return OutcomeFailed, fmt.Errorf("update external order %d: %w", order.ID, err)
	}
	logger.FromContext(ctx).Info("Aggregator order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("raw_status", rawStatus),
		zap.String("order_status", string(status)))

	order.OrderStatus = status
	order.RawStatus = &rawStatus
	e.orders.Publish(ctx, messaging.EventOrderStatusChanged, order)
	return OutcomeUpdated, nil
}

func (e *Engine) findExternal(ctx context.Context, platform, externalID string) (*model.Order, error) {
	var order model.Order
	err := e.db.WithContext(ctx).
		Where("external_order_id = ? AND external_platform = ?", externalID, platform).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find external order: %w", err)
	}
	return &order, nil
}

// tenants lists active tenants with at least one outlet id, in id order
func (e *Engine) tenants(ctx context.Context, tenantID *uint) ([]model.Restaurant, error) {
	query := e.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("(zomato_outlet_ids IS NOT NULL AND zomato_outlet_ids <> '') OR (swiggy_outlet_ids IS NOT NULL AND swiggy_outlet_ids <> '')")
	if tenantID != nil {
		query = query.Where("id = ?", *tenantID)
	}
	var tenants []model.Restaurant
	if err := query.Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("load tenants: %w", err)
	}
	return tenants, nil
}

// matchTenant returns the first tenant listing outletID for the platform
func matchTenant(tenants []model.Restaurant, platform, outletID string) *model.Restaurant {
	for i := range tenants {
		if slices.Contains(tenants[i].OutletIDs(platform), outletID) {
			return &tenants[i]
		}
	}
	return nil
}
