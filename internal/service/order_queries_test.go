package service

import (
	"context"
	"testing"
	"time"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
	"tableorder-service/internal/testutil"
)

func TestGetAllOrders_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := env.addTable(t, "30", true)

	a := env.order(t, env.fixture.Table.ID, "")
	b := env.order(t, env.fixture.Table.ID, a.SessionToken)
	c := env.order(t, other.ID, "")
	env.setStatus(t, b.Order.ID, model.StatusPreparing)

	tenant := env.tenantID()
	tests := []struct {
		name   string
		filter OrderFilter
		want   int
	}{
		{"by session token", OrderFilter{SessionToken: a.SessionToken}, 2},
		{"by session id", OrderFilter{SessionID: c.Order.SessionID}, 1},
		{"by table", OrderFilter{TableID: &other.ID}, 1},
		{"by status", OrderFilter{TenantID: &tenant, Statuses: []model.OrderStatus{model.StatusPreparing}}, 1},
		{"by tenant", OrderFilter{TenantID: &tenant}, 3},
		{"limit", OrderFilter{TenantID: &tenant, Limit: 2}, 2},
		{"future range", OrderFilter{From: testutil.Ptr(time.Now().Add(time.Hour))}, 0},
		{"unknown token", OrderFilter{SessionToken: "nope"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := env.orders.GetAllOrders(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetAllOrders() error = %v", err)
			}
			if len(orders) != tt.want {
				t.Fatalf("expected %d orders, got %d", tt.want, len(orders))
			}
		})
	}

	orders, _ := env.orders.GetAllOrders(ctx, OrderFilter{SessionToken: a.SessionToken})
	if orders[0].ID != b.Order.ID || len(orders[0].Items) != 1 {
		t.Fatalf("expected newest first with items preloaded")
	}
}

func TestGetOrderByID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	placed := env.order(t, env.fixture.Table.ID, "")

	tenant := env.tenantID()
	if _, err := env.orders.GetOrderByID(ctx, &tenant, placed.Order.ID); err != nil {
		t.Fatalf("GetOrderByID() error = %v", err)
	}
	otherTenant := tenant + 1
	if _, err := env.orders.GetOrderByID(ctx, &otherTenant, placed.Order.ID); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}
}

func TestGetKitchenOrders(t *testing.T) {
	env := newTestEnv(t)
	a := env.order(t, env.fixture.Table.ID, "")
	b := env.order(t, env.fixture.Table.ID, a.SessionToken)
	c := env.order(t, env.fixture.Table.ID, a.SessionToken)
	env.setStatus(t, b.Order.ID, model.StatusServed)
	env.setStatus(t, c.Order.ID, model.StatusReady)

	orders, err := env.orders.GetKitchenOrders(context.Background(), env.tenantID())
	if err != nil {
		t.Fatalf("GetKitchenOrders() error = %v", err)
	}
	if len(orders) != 2 || orders[0].ID != a.Order.ID || orders[1].ID != c.Order.ID {
		t.Fatalf("expected pending then ready, oldest first, got %d orders", len(orders))
	}
}

func TestGetOrderStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tenant := env.tenantID()
	env.setSetting(t, &tenant, SettingTaxRate, "0.10")

	a := env.order(t, env.fixture.Table.ID, "")
	b := env.order(t, env.fixture.Table.ID, a.SessionToken)
	env.order(t, env.fixture.Table.ID, a.SessionToken)
	env.setStatus(t, a.Order.ID, model.StatusServed)
	env.setStatus(t, b.Order.ID, model.StatusReady)
	if _, err := env.orders.UpdatePaymentStatus(ctx, tenant, a.Order.ID, model.PaymentApproved, nil); err != nil {
		t.Fatalf("UpdatePaymentStatus() error = %v", err)
	}

	stats, err := env.orders.GetOrderStats(ctx, tenant, nil, nil)
	if err != nil {
		t.Fatalf("GetOrderStats() error = %v", err)
	}
	if stats.TotalOrders != 3 || stats.PaidOrders != 3 {
		t.Fatalf("expected 3 orders all paid, got %d/%d", stats.TotalOrders, stats.PaidOrders)
	}
	if !stats.Revenue.Equal(dec("330")) || !stats.AverageOrderValue.Equal(dec("110")) {
		t.Fatalf("unexpected revenue %s avg %s", stats.Revenue, stats.AverageOrderValue)
	}
	if stats.ByStatus[model.StatusCompleted] != 2 || stats.ByStatus[model.StatusPending] != 1 {
		t.Fatalf("unexpected status breakdown %v", stats.ByStatus)
	}
	if stats.ByType[model.OrderTypeRegular] != 1 || stats.ByType[model.OrderTypeAddon] != 2 {
		t.Fatalf("unexpected type breakdown %v", stats.ByType)
	}
}

func TestGetSessionReceipt_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.orders.GetSessionReceipt(context.Background(), "missing"); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetSessionOrders_RequiresLiveToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.order(t, env.fixture.Table.ID, "")
	env.order(t, env.fixture.Table.ID, first.SessionToken)

	orders, err := env.orders.GetSessionOrders(ctx, first.SessionToken)
	if err != nil {
		t.Fatalf("GetSessionOrders() error = %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders for the live token, got %d", len(orders))
	}

	if err := env.sessions.ExpireSession(ctx, *first.Order.SessionID); err != nil {
		t.Fatalf("ExpireSession() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", first.SessionToken},
		{"unknown", "missing"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.orders.GetSessionOrders(ctx, tt.token); !apperror.IsKind(err, apperror.KindNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}
