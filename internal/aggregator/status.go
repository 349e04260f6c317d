package aggregator

import "tableorder-service/internal/model"

// statusMap translates Zomato buckets and vendor states to order_status
var statusMap = map[string]model.OrderStatus{
	"PLACED":     model.StatusPending,
	"new_orders": model.StatusPending,

	"ACCEPTED": model.StatusConfirmed,

	"PREPARING":        model.StatusPreparing,
	"preparing_orders": model.StatusPreparing,

	"FOOD_READY":   model.StatusReady,
	"READY":        model.StatusReady,
	"ready_orders": model.StatusReady,

	"DISPATCHED":        model.StatusCompleted,
	"dispatched_orders": model.StatusCompleted,
	"DELIVERED":         model.StatusCompleted,
	"completed_orders":  model.StatusCompleted,

	"CANCELLED": model.StatusCancelled,
	"REJECTED":  model.StatusCancelled,
}

// MapStatus returns the local status for a vendor status; unknown values are pending
func MapStatus(raw string) model.OrderStatus {
	if status, ok := statusMap[raw]; ok {
		return status
	}
	return model.StatusPending
}
