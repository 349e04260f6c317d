package handler

import (
	"net/http"

	"tableorder-service/internal/middleware"
	"tableorder-service/internal/service"

	"github.com/labstack/echo/v4"
)

type TableHandler struct {
	tables *service.TableService
}

func NewTableHandler(tables *service.TableService) *TableHandler {
	return &TableHandler{tables: tables}
}

// ClearTable closes every active session on a table
func (h *TableHandler) ClearTable(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	tableID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	closed, err := h.tables.ClearTable(c.Request().Context(), tenantID, tableID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions_closed": closed})
}

type moveRequest struct {
	SourceTableID uint `json:"source_table_id"`
	TargetTableID uint `json:"target_table_id"`
}

// MoveSession moves a table's active session and open orders to another table
func (h *TableHandler) MoveSession(c echo.Context) error {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant context missing"})
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SourceTableID == 0 || req.TargetTableID == 0 {
		return badRequest(c, "source_table_id and target_table_id are required")
	}
	moved, err := h.tables.MoveTableSession(c.Request().Context(), tenantID, req.SourceTableID, req.TargetTableID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, moved)
}
