package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersAreNoopsBeforeRegister(t *testing.T) {
	// must not panic with nil metrics
	RecordOrderCreated("regular")
	RecordTransition("order", "ready", true)
	RecordBridgeCall("accept", nil)
	TrackDBOperation("create_order")(time.Now())
}

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg, "test")
	t.Cleanup(func() {
		OrdersCreatedCounter = nil
		BridgeCallsCounter = nil
		OrderTransitionsCounter = nil
	})

	RecordOrderCreated("addon")
	RecordOrderCreated("addon")
	RecordBridgeCall("accept", errors.New("timeout"))
	RecordTransition("payment", "Approved", false)

	if got := testutil.ToFloat64(OrdersCreatedCounter.WithLabelValues("addon")); got != 2 {
		t.Fatalf("expected 2 addon orders, got %v", got)
	}
	if got := testutil.ToFloat64(BridgeCallsCounter.WithLabelValues("accept", "error")); got != 1 {
		t.Fatalf("expected 1 failed bridge call, got %v", got)
	}
	if got := testutil.ToFloat64(OrderTransitionsCounter.WithLabelValues("payment", "Approved", "rejected")); got != 1 {
		t.Fatalf("expected 1 rejected transition, got %v", got)
	}
}
