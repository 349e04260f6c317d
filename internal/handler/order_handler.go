package handler

import (
	"net/http"
	"strings"

	"tableorder-service/internal/middleware"
	"tableorder-service/internal/service"
	"tableorder-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OrderHandler serves diner ordering and staff order management
type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder admits a diner order from a table
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req service.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	result, err := h.orders.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"session_token": result.SessionToken,
		"order":         newDinerOrder(result.Order),
	})
}

// ListSessionOrders returns the orders placed with a session token that has not expired
func (h *OrderHandler) ListSessionOrders(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("session_token"))
	if token == "" {
		return badRequest(c, "session_token is required")
	}
	orders, err := h.orders.GetSessionOrders(c.Request().Context(), token)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newDinerOrders(orders))
}

// GetSession returns a diner receipt while the session's stored expiry holds
func (h *OrderHandler) GetSession(c echo.Context) error {
	receipt, err := h.orders.GetSessionReceipt(c.Request().Context(), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newSessionReceipt(receipt))
}

// ListOrders lists the tenant's orders. Filters: status (comma separated), table_id,
// session_id, session_token, from, to, limit.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}

	filter := service.OrderFilter{TenantID: &tenantID, SessionToken: c.QueryParam("session_token")}
	var err error
	if filter.TableID, err = queryID(c, "table_id"); err != nil {
		return respondError(c, err)
	}
	if filter.SessionID, err = queryID(c, "session_id"); err != nil {
		return respondError(c, err)
	}
	if filter.From, err = queryTime(c, "from"); err != nil {
		return respondError(c, err)
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return respondError(c, err)
	}
	if limit, err := queryID(c, "limit"); err != nil {
		return respondError(c, err)
	} else if limit != nil {
		filter.Limit = int(*limit)
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := service.ParseOrderStatus(strings.TrimSpace(part))
			if err != nil {
				return respondError(c, err)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	orders, err := h.orders.GetAllOrders(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	logger.FromEcho(c).Debug("Orders listed", zap.Int("count", len(orders)))
	return c.JSON(http.StatusOK, orders)
}

// KitchenOrders lists open orders oldest first
func (h *OrderHandler) KitchenOrders(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	orders, err := h.orders.GetKitchenOrders(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) OrderStats(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return respondError(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.orders.GetOrderStats(c.Request().Context(), tenantID, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	orderID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	order, err := h.orders.GetOrderByID(c.Request().Context(), &tenantID, orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus applies one order status transition
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	orderID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	status, err := service.ParseOrderStatus(req.Status)
	if err != nil {
		return respondError(c, err)
	}
	order, err := h.orders.UpdateOrderStatus(c.Request().Context(), tenantID, orderID, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type paymentRequest struct {
	PaymentStatus string  `json:"payment_status"`
	PaymentMethod *string `json:"payment_method"`
}

// UpdatePayment applies one payment transition. Approving settles the whole session.
func (h *OrderHandler) UpdatePayment(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	orderID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	status, err := service.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		return respondError(c, err)
	}
	order, err := h.orders.UpdatePaymentStatus(c.Request().Context(), tenantID, orderID, status, req.PaymentMethod)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	orderID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	result, err := h.orders.CancelOrder(c.Request().Context(), tenantID, orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": result.Deleted, "order": result.Order})
}
