package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
	"tableorder-service/pkg/database"
	"tableorder-service/pkg/logger"
	"tableorder-service/pkg/messaging"
	"tableorder-service/prometheus"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService admits, queries and transitions orders
type OrderService struct {
	db       *gorm.DB
	sessions *SessionManager
	numbers  NumberGenerator
	catalog  MenuCatalog
	settings TenantSettings
	events   messaging.Publisher
	retry    database.RetryPolicy
}

// OrderServiceConfig wires OrderService collaborators. Nil Events disables publishing.
type OrderServiceConfig struct {
	DB             *gorm.DB
	Sessions       *SessionManager
	Numbers        NumberGenerator
	Catalog        MenuCatalog
	Settings       TenantSettings
	Events         messaging.Publisher
	NumberAttempts int
	RetryBackoff   time.Duration
}

func NewOrderService(cfg OrderServiceConfig) *OrderService {
	events := cfg.Events
	if events == nil {
		events = messaging.NoopPublisher{}
	}
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = 10 * time.Millisecond
	}
	return &OrderService{
		db:       cfg.DB,
		sessions: cfg.Sessions,
		numbers:  cfg.Numbers,
		catalog:  cfg.Catalog,
		settings: cfg.Settings,
		events:   events,
		retry: database.RetryPolicy{
			Attempts: cfg.NumberAttempts,
			Backoff:  backoff,
			OnRetry: func(int, error) {
				prometheus.RecordOrderNumberRetry()
			},
		},
	}
}

// OrderItemInput is one requested line
type OrderItemInput struct {
	MenuItemID          uint    `json:"menu_item_id"`
	Quantity            int     `json:"quantity"`
	OptionIDs           []uint  `json:"customization_option_ids"`
	SpiceLevel          *string `json:"spice_level"`
	SpecialInstructions string  `json:"special_instructions"`
}

// CreateOrderRequest is a diner submission from a table
type CreateOrderRequest struct {
	TableID             uint             `json:"table_id"`
	Items               []OrderItemInput `json:"items"`
	CustomerName        *string          `json:"customer_name"`
	CustomerPhone       *string          `json:"customer_phone"`
	SpecialInstructions string           `json:"special_instructions"`
	SessionToken        string           `json:"session_token"`
}

// CreateOrderResult carries the committed order and the token the device should keep
type CreateOrderResult struct {
	Order        *model.Order
	SessionToken string
}

// catalogEntry is a menu item and its configured options, read before the table lock is taken
type catalogEntry struct {
	item    *model.MenuItem
	options map[uint]model.AppliedCustomization
}

// CreateOrder prices and inserts an order against the table's session. The whole admission
// runs in one transaction holding the table row lock, so submissions for one table are
// serialized and never race on session creation.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	log := logger.FromContext(ctx).With(zap.Uint("table_id", req.TableID))
	defer prometheus.TrackDBOperation("create_order")(time.Now())

	if len(req.Items) == 0 {
		return nil, apperror.BadRequest("order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, apperror.BadRequest("quantity for menu item %d must be positive", item.MenuItemID)
		}
	}

	db := s.db.WithContext(ctx)

	// Tenant is immutable, so settings and menu reads can happen before the lock.
	var table model.Table
	if err := db.First(&table, req.TableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("table %d not found", req.TableID)
		}
		return nil, apperror.Internal("load table", err)
	}
	taxRate, err := rate(ctx, s.settings, SettingTaxRate, table.TenantID)
	if err != nil {
		return nil, apperror.Internal("load tax rate", err)
	}
	discountRate, err := rate(ctx, s.settings, SettingDiscountRate, table.TenantID)
	if err != nil {
		return nil, apperror.Internal("load discount rate", err)
	}
	entries, err := s.loadCatalog(ctx, req.Items)
	if err != nil {
		return nil, apperror.Internal("load menu", err)
	}

	var (
		orderID uint
		token   string
	)
	err = db.Transaction(func(tx *gorm.DB) error {
		var locked model.Table
		if err := database.ForUpdate(tx).First(&locked, req.TableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("table %d not found", req.TableID)
			}
			return apperror.Internal("lock table", err)
		}
		if !locked.IsAvailable {
			return apperror.Conflict("table %s is not accepting orders", locked.TableNumber)
		}

		sessions := s.sessions.WithTx(tx)
		session, err := s.resolveSession(ctx, sessions, locked.ID, req.SessionToken)
		if err != nil {
			return apperror.Internal("resolve session", err)
		}
		token = session.SessionToken
		if err := sessions.UpdateCustomerDetails(ctx, session.ID, req.CustomerName, req.CustomerPhone); err != nil {
			return apperror.Internal("update customer details", err)
		}

		items, subtotal, err := priceItems(locked.TenantID, req.Items, entries)
		if err != nil {
			return err
		}
		totals := computeTotals(subtotal, taxRate, discountRate)

		orderType, err := admissionType(tx, session.ID)
		if err != nil {
			return apperror.Internal("classify order", err)
		}

		order := model.Order{
			TenantID:            locked.TenantID,
			SessionID:           &session.ID,
			TableID:             &locked.ID,
			OrderType:           orderType,
			OrderStatus:         model.StatusPending,
			PaymentStatus:       model.PaymentPending,
			CustomerName:        req.CustomerName,
			CustomerPhone:       req.CustomerPhone,
			SpecialInstructions: req.SpecialInstructions,
			Subtotal:            totals.Subtotal,
			TaxAmount:           totals.Tax,
			DiscountAmount:      totals.Discount,
			TotalAmount:         totals.Total,
			AppliedTaxRate:      taxRate,
			AppliedDiscountRate: discountRate,
		}
		if err := s.insertWithNumber(ctx, tx, &order, s.retry); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperror.Internal("insert order items", err)
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		logFailure(log, "Order admission failed", err)
		return nil, err
	}

	order, err := s.GetOrderByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}

	prometheus.RecordOrderCreated(string(order.OrderType))
	log.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("order_type", string(order.OrderType)),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	s.publish(ctx, messaging.EventOrderCreated, order, false)

	return &CreateOrderResult{Order: order, SessionToken: token}, nil
}

// resolveSession honours a submitted token only when it names an active session of this
// table. The scanned table is authoritative; anything else falls through to the table's session.
func (s *OrderService) resolveSession(ctx context.Context, sessions *SessionManager, tableID uint, token string) (*model.Session, error) {
	if token != "" {
		session, err := sessions.ValidateSession(ctx, token)
		if err != nil {
			return nil, err
		}
		if session != nil && session.TableID == tableID && session.IsActive {
			return session, nil
		}
		logger.FromContext(ctx).Info("Ignoring session token not valid for this table",
			zap.Uint("table_id", tableID),
			zap.Bool("known", session != nil))
	}
	session, _, err := sessions.GetOrCreateSession(ctx, tableID)
	return session, err
}

// insertWithNumber allocates an order number and inserts order, regenerating the number
// on a unique violation. Each attempt runs in its own savepoint.
func (s *OrderService) insertWithNumber(ctx context.Context, tx *gorm.DB, order *model.Order, policy database.RetryPolicy) error {
	err := database.RetryOnConflict(ctx, tx, policy, func(sp *gorm.DB, attempt int) error {
		number, err := s.numbers.Next(ctx, sp, order.TenantID)
		if err != nil {
			return err
		}
		order.ID = 0
		order.OrderNumber = number
		return sp.Create(order).Error
	})
	if errors.Is(err, database.ErrRetriesExhausted) {
		prometheus.RecordOrderNumberExhausted()
		return &apperror.Error{Kind: apperror.KindConflict, Message: "could not allocate an order number, please retry", Err: err}
	}
	if err != nil {
		if apperror.KindOf(err) != apperror.KindInternal {
			return err
		}
		return apperror.Internal("insert order", err)
	}
	return nil
}

// admissionType is addon when the session already carries an open, uncancelled bill
func admissionType(tx *gorm.DB, sessionID uint) (model.OrderType, error) {
	var open int64
	err := tx.Model(&model.Order{}).
		Where("session_id = ? AND payment_status IN ? AND order_status <> ?",
			sessionID,
			[]model.PaymentStatus{model.PaymentPending, model.PaymentRequested, model.PaymentFailed},
			model.StatusCancelled).
		Count(&open).Error
	if err != nil {
		return "", err
	}
	if open > 0 {
		return model.OrderTypeAddon, nil
	}
	return model.OrderTypeRegular, nil
}

func (s *OrderService) loadCatalog(ctx context.Context, items []OrderItemInput) (map[uint]*catalogEntry, error) {
	entries := make(map[uint]*catalogEntry, len(items))
	for _, input := range items {
		if _, seen := entries[input.MenuItemID]; seen {
			continue
		}
		item, err := s.catalog.FindByID(ctx, input.MenuItemID)
		if err != nil {
			return nil, err
		}
		entry := &catalogEntry{item: item, options: map[uint]model.AppliedCustomization{}}
		entries[input.MenuItemID] = entry
		if item == nil {
			continue
		}

		groups, err := s.catalog.FindCustomizationsForItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			for _, option := range group.Options {
				if !option.IsAvailable {
					continue
				}
				entry.options[option.ID] = model.AppliedCustomization{
					GroupID:       group.ID,
					GroupName:     group.Name,
					OptionID:      option.ID,
					OptionName:    option.Name,
					PriceModifier: option.PriceModifier,
				}
			}
		}
	}
	return entries, nil
}

// priceItems snapshots each line. Selected options that are not configured and available
// for the item are dropped rather than failing the order.
func priceItems(tenantID uint, inputs []OrderItemInput, entries map[uint]*catalogEntry) ([]model.OrderItem, decimal.Decimal, error) {
	subtotal := decimal.Zero
	items := make([]model.OrderItem, 0, len(inputs))

	for _, input := range inputs {
		entry := entries[input.MenuItemID]
		if entry == nil || entry.item == nil || entry.item.TenantID != tenantID {
			return nil, decimal.Zero, apperror.NotFound("menu item %d not found", input.MenuItemID)
		}
		item := entry.item
		if !item.IsAvailable {
			return nil, decimal.Zero, apperror.BadRequest("%s is not available", item.Name)
		}

		unit := item.Price
		applied := make([]model.AppliedCustomization, 0, len(input.OptionIDs))
		picked := make(map[uint]bool, len(input.OptionIDs))
		for _, optionID := range input.OptionIDs {
			option, ok := entry.options[optionID]
			if !ok || picked[optionID] {
				continue
			}
			picked[optionID] = true
			unit = unit.Add(option.PriceModifier)
			applied = append(applied, option)
		}
		if unit.IsNegative() {
			return nil, decimal.Zero, apperror.Internal("price menu item", fmt.Errorf("negative unit price for item %d", item.ID))
		}

		lineTotal := unit.Mul(decimal.NewFromInt(int64(input.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		menuItemID := item.ID
		items = append(items, model.OrderItem{
			MenuItemID:          &menuItemID,
			ItemName:            item.Name,
			ItemCategory:        item.Category,
			Quantity:            input.Quantity,
			UnitPrice:           unit,
			TotalPrice:          lineTotal,
			Customizations:      applied,
			SpiceLevel:          input.SpiceLevel,
			SpecialInstructions: input.SpecialInstructions,
		})
	}
	return items, subtotal, nil
}

// Totals are rounded to cents; Total is always Subtotal + Tax - Discount
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func computeTotals(subtotal, taxRate, discountRate decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	discount := subtotal.Mul(discountRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(tax).Sub(discount),
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *model.Order, deleted bool) {
	event := messaging.OrderEvent{
		Type:          eventType,
		TenantID:      order.TenantID,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		OrderType:     string(order.OrderType),
		OrderStatus:   string(order.OrderStatus),
		PaymentStatus: string(order.PaymentStatus),
		TableID:       order.TableID,
		Deleted:       deleted,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish order event",
			zap.String("type", eventType),
			zap.Uint("order_id", order.ID),
			zap.Error(err))
	}
}

// logFailure logs business-rule failures at Warn and everything else at Error
func logFailure(log *zap.Logger, msg string, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		log.Error(msg, zap.Error(err))
		return
	}
	log.Warn(msg, zap.Error(err))
}
