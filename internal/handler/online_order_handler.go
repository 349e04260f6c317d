package handler

import (
	"context"
	"net/http"

	"tableorder-service/internal/aggregator"
	"tableorder-service/internal/middleware"
	"tableorder-service/internal/model"
	"tableorder-service/pkg/bridge"
	"tableorder-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OnlineOrders is the aggregator engine surface used by staff and bridge routes
type OnlineOrders interface {
	SyncOnce(ctx context.Context, tenantID *uint) (*aggregator.SyncReport, error)
	Ingest(ctx context.Context, orders []bridge.ExternalOrder) (*aggregator.SyncReport, error)
	Accept(ctx context.Context, tenantID, orderID uint, prepMinutes int) (*model.Order, error)
	MarkReady(ctx context.Context, tenantID, orderID uint) (*model.Order, error)
	Reject(ctx context.Context, tenantID, orderID uint) (*model.Order, error)
	PendingActions(ctx context.Context, outletID string) ([]aggregator.PendingAction, error)
	ConfirmAction(ctx context.Context, platform, externalOrderID string, code int) error
}

// OnlineOrderHandler serves staff actions on aggregator orders
type OnlineOrderHandler struct {
	engine OnlineOrders
}

func NewOnlineOrderHandler(engine OnlineOrders) *OnlineOrderHandler {
	return &OnlineOrderHandler{engine: engine}
}

// Sync runs one reconciliation limited to the caller's tenant
func (h *OnlineOrderHandler) Sync(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	report, err := h.engine.SyncOnce(c.Request().Context(), &tenantID)
	if err != nil {
		logger.FromEcho(c).Warn("Staff triggered sync failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "aggregator bridge unavailable"})
	}
	return c.JSON(http.StatusOK, report)
}

type acceptRequest struct {
	PrepTime int `json:"prep_time"`
}

func (h *OnlineOrderHandler) Accept(c echo.Context) error {
	var req acceptRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PrepTime < 0 {
		return badRequest(c, "prep_time must not be negative")
	}
	return h.act(c, func(ctx context.Context, tenantID, orderID uint) (*model.Order, error) {
		return h.engine.Accept(ctx, tenantID, orderID, req.PrepTime)
	})
}

func (h *OnlineOrderHandler) MarkReady(c echo.Context) error {
	return h.act(c, h.engine.MarkReady)
}

func (h *OnlineOrderHandler) Reject(c echo.Context) error {
	return h.act(c, h.engine.Reject)
}

func (h *OnlineOrderHandler) act(c echo.Context, action func(ctx context.Context, tenantID, orderID uint) (*model.Order, error)) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	orderID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	order, err := action(c.Request().Context(), tenantID, orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
