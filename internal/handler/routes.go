package handler

import (
	"tableorder-service/internal/middleware"
	"tableorder-service/internal/service"
	"tableorder-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the HTTP surface needs
type Dependencies struct {
	DB           *gorm.DB
	Orders       *service.OrderService
	Tables       *service.TableService
	Online       OnlineOrders
	JWT          *jwtutil.JWTUtil
	BridgeSecret string
}

// RegisterRoutes mounts the public, staff and bridge groups
func RegisterRoutes(e *echo.Echo, d Dependencies) {
	orders := NewOrderHandler(d.Orders)
	tables := NewTableHandler(d.Tables)
	online := NewOnlineOrderHandler(d.Online)
	bridge := NewBridgeHandler(d.Online)

	e.GET("/health", HealthCheck(d.DB))

	api := e.Group("/api/v1")
	api.POST("/orders", orders.CreateOrder)
	api.GET("/orders", orders.ListSessionOrders)
	api.GET("/sessions/:token", orders.GetSession)

	staff := api.Group("/staff", middleware.AuthMiddleware(d.JWT))
	staff.GET("/orders", orders.ListOrders)
	staff.GET("/orders/kitchen", orders.KitchenOrders)
	staff.GET("/orders/stats", orders.OrderStats)
	staff.GET("/orders/:id", orders.GetOrder)
	staff.PATCH("/orders/:id/status", orders.UpdateStatus)
	staff.PATCH("/orders/:id/payment", orders.UpdatePayment)
	staff.PATCH("/orders/:id/cancel", orders.CancelOrder)
	staff.POST("/tables/:id/clear", tables.ClearTable)
	staff.POST("/tables/move", tables.MoveSession)
	staff.POST("/online-orders/sync", online.Sync)
	staff.POST("/online-orders/:id/accept", online.Accept)
	staff.POST("/online-orders/:id/ready", online.MarkReady)
	staff.POST("/online-orders/:id/reject", online.Reject)

	relay := api.Group("/bridge", middleware.BridgeSecretMiddleware(d.BridgeSecret))
	relay.POST("/orders", bridge.ReceiveOrders)
	relay.GET("/:outletId/orders/status", bridge.PendingActions)
	relay.POST("/orders/:orderId/status", bridge.ConfirmAction)
}
