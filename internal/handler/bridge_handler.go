package handler

import (
	"net/http"

	"tableorder-service/internal/aggregator"
	"tableorder-service/pkg/bridge"
	"tableorder-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BridgeHandler serves the routes the out-of-process bridge client calls
type BridgeHandler struct {
	engine OnlineOrders
}

func NewBridgeHandler(engine OnlineOrders) *BridgeHandler {
	return &BridgeHandler{engine: engine}
}

type webhookBatch struct {
	Orders []bridge.WebhookOrder `json:"orders"`
}

type webhookResult struct {
	Status  int    `json:"status"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// ReceiveOrders ingests pushed orders. Each order gets its own result, a bad one does not fail the batch.
func (h *BridgeHandler) ReceiveOrders(c echo.Context) error {
	log := logger.FromEcho(c)

	var batch webhookBatch
	if err := c.Bind(&batch); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(batch.Orders) == 0 {
		return badRequest(c, "orders are required")
	}

	results := make([]webhookResult, 0, len(batch.Orders))
	accepted := make([]bridge.ExternalOrder, 0, len(batch.Orders))
	for _, pushed := range batch.Orders {
		result := webhookResult{Status: http.StatusOK, OrderID: pushed.OrderID.String(), Message: "Order received"}
		ext, err := pushed.External()
		if err == nil {
			_, err = aggregator.Normalize(ext)
		}
		if err != nil {
			log.Warn("Rejected pushed order", zap.String("order_id", result.OrderID), zap.Error(err))
			result.Status = http.StatusBadRequest
			result.Message = err.Error()
		} else {
			accepted = append(accepted, ext)
		}
		results = append(results, result)
	}

	if len(accepted) > 0 {
		report, err := h.engine.Ingest(c.Request().Context(), accepted)
		if err != nil {
			return respondError(c, err)
		}
		log.Info("Pushed orders ingested", zap.Int("received", len(batch.Orders)), zap.Int("created", report.Created))
	}
	return c.JSON(http.StatusOK, results)
}

// PendingActions lists the actions the bridge client still has to perform for an outlet
func (h *BridgeHandler) PendingActions(c echo.Context) error {
	actions, err := h.engine.PendingActions(c.Request().Context(), c.Param("outletId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orderHistory": false, "orders": actions})
}

type confirmRequest struct {
	StatusCode int    `json:"statusCode"`
	Platform   string `json:"platform"`
}

// ConfirmAction records that the bridge client performed a queued action
func (h *BridgeHandler) ConfirmAction(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.engine.ConfirmAction(c.Request().Context(), req.Platform, c.Param("orderId"), req.StatusCode); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": http.StatusOK, "message": "Order status updated"})
}
