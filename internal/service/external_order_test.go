package service

import (
	"context"
	"errors"
	"testing"

	"tableorder-service/internal/apperror"
	"tableorder-service/internal/model"
)

func externalOrder(tenantID uint, platform, externalID string) *model.Order {
	return &model.Order{
		TenantID:         tenantID,
		OrderType:        model.OrderTypeOnline,
		OrderStatus:      model.StatusPending,
		PaymentStatus:    model.PaymentApproved,
		Subtotal:         dec("200.00"),
		TotalAmount:      dec("200.00"),
		ExternalPlatform: &platform,
		ExternalOrderID:  &externalID,
		Items: []model.OrderItem{
			{ItemName: "Paneer Tikka", Quantity: 1, UnitPrice: dec("200.00"), TotalPrice: dec("200.00")},
		},
	}
}

func TestCreateExternalOrder_DuplicateIsNotRetried(t *testing.T) {
	numbers := &scriptedNumbers{numbers: []string{"202610140001", "202610140002", "202610140003"}}
	env := newTestEnvWithNumbers(t, numbers)
	ctx := context.Background()

	if _, err := env.orders.CreateExternalOrder(ctx, externalOrder(env.tenantID(), model.PlatformZomato, "Z-1")); err != nil {
		t.Fatalf("CreateExternalOrder() error = %v", err)
	}

	_, err := env.orders.CreateExternalOrder(ctx, externalOrder(env.tenantID(), model.PlatformZomato, "Z-1"))
	if !errors.Is(err, ErrDuplicateExternalOrder) {
		t.Fatalf("expected ErrDuplicateExternalOrder, got %v", err)
	}
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
	if numbers.calls != 2 {
		t.Fatalf("expected one number per call, got %d", numbers.calls)
	}

	var orders, items int64
	env.db.Model(&model.Order{}).Count(&orders)
	env.db.Model(&model.OrderItem{}).Count(&items)
	if orders != 1 || items != 1 {
		t.Fatalf("duplicate wrote rows: orders=%d items=%d", orders, items)
	}
}

func TestCreateExternalOrder_NumberCollisionStillRetries(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		id       string
	}{
		{"same id other platform", model.PlatformSwiggy, "Z-1"},
		{"new id", model.PlatformZomato, "Z-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			numbers := &scriptedNumbers{numbers: []string{"202610140001", "202610140001", "202610140002"}}
			env := newTestEnvWithNumbers(t, numbers)
			ctx := context.Background()

			if _, err := env.orders.CreateExternalOrder(ctx, externalOrder(env.tenantID(), model.PlatformZomato, "Z-1")); err != nil {
				t.Fatalf("CreateExternalOrder() error = %v", err)
			}
			created, err := env.orders.CreateExternalOrder(ctx, externalOrder(env.tenantID(), tt.platform, tt.id))
			if err != nil {
				t.Fatalf("CreateExternalOrder() error = %v", err)
			}
			if created.OrderNumber != "202610140002" {
				t.Fatalf("expected retried number, got %q", created.OrderNumber)
			}
			if numbers.calls != 3 {
				t.Fatalf("expected 3 number draws, got %d", numbers.calls)
			}
		})
	}
}
