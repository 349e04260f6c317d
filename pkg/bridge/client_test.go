package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"tableorder-service/pkg/config"
)

type recordedCall struct {
	method string
	path   string
	query  string
	auth   string
}

func newTestBridge(t *testing.T, routes map[string]string) (*Client, func() []recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, recordedCall{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization")})
		mu.Unlock()

		key := r.URL.Path
		if id := r.URL.Query().Get("order_id"); id != "" && r.Method == http.MethodGet {
			key += "?" + id
		}
		body, ok := routes[key]
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(&config.BridgeConfig{BaseURL: srv.URL, AccessToken: "secret", Timeout: 2 * time.Second}, nil)
	return client, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestFetchOrders_MergesBothPlatforms(t *testing.T) {
	client, calls := newTestBridge(t, map[string]string{
		"/api/v1/zomato/orders/current": `{
			"new_orders": {"entities": [{"order_id": 101}]},
			"ready_orders": {"entities": [{"tab_id": "102"}]},
			"meta": "ignored"
		}`,
		"/api/v1/zomato/order/details?101": `{"order": {"id": 101, "resId": 555}}`,
		"/api/v1/zomato/order/details?102": `{"order": {"id": 102, "resId": 555}}`,
		"/api/v1/swiggy/orders":            `{"orders": [{"id": "S1"}, {"id": "S2"}]}`,
	})

	orders, err := client.FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("FetchOrders() error = %v", err)
	}
	if len(orders) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(orders))
	}

	buckets := map[string]string{}
	swiggy := 0
	for _, o := range orders {
		switch o.Platform {
		case PlatformZomato:
			var detail struct {
				Order struct {
					ID FlexString `json:"id"`
				} `json:"order"`
			}
			if err := json.Unmarshal(o.Payload, &detail); err != nil {
				t.Fatalf("decode detail: %v", err)
			}
			buckets[detail.Order.ID.String()] = o.Bucket
		case PlatformSwiggy:
			swiggy++
		}
	}
	if buckets["101"] != "new_orders" || buckets["102"] != "ready_orders" || swiggy != 2 {
		t.Fatalf("unexpected merge result buckets=%v swiggy=%d", buckets, swiggy)
	}

	for _, c := range calls() {
		if c.auth != "Bearer secret" {
			t.Fatalf("call to %s missing bearer token", c.path)
		}
	}
}

func TestFetchOrders_BucketListAndFlatSwiggy(t *testing.T) {
	client, _ := newTestBridge(t, map[string]string{
		"/api/v1/zomato/orders/current":  `[{"new_orders": {"entities": [{"order_id": "7"}]}}]`,
		"/api/v1/zomato/order/details?7": `{"order": {"id": "7"}}`,
		"/api/v1/swiggy/orders":          `[{"id": "S9"}]`,
	})
	orders, err := client.FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("FetchOrders() error = %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
}

func TestFetchOrders_OnePlatformDown(t *testing.T) {
	client, _ := newTestBridge(t, map[string]string{
		"/api/v1/swiggy/orders": `[{"id": "S1"}]`,
	})
	orders, err := client.FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(orders) != 1 || orders[0].Platform != PlatformSwiggy {
		t.Fatalf("expected only the swiggy order, got %+v", orders)
	}
}

func TestFetchOrders_DetailFailureSkipsOrder(t *testing.T) {
	client, _ := newTestBridge(t, map[string]string{
		"/api/v1/zomato/orders/current":  `{"new_orders": {"entities": [{"order_id": 1}, {"order_id": 2}]}}`,
		"/api/v1/zomato/order/details?1": `{"order": {"id": 1}}`,
		"/api/v1/swiggy/orders":          `[]`,
	})
	orders, err := client.FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("FetchOrders() error = %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected the order with a detail only, got %d", len(orders))
	}
}

func TestFetchOrders_BothDown(t *testing.T) {
	client, _ := newTestBridge(t, map[string]string{})
	if _, err := client.FetchOrders(context.Background()); err == nil {
		t.Fatalf("expected an error when both platforms fail")
	}
}

func TestActions(t *testing.T) {
	okRoutes := map[string]string{
		"/api/v1/zomato/orders/accept_order": `{}`,
		"/api/v1/zomato/orders/mark_ready":   `{}`,
		"/api/v1/zomato/orders/reject":       `{}`,
		"/api/v1/swiggy/orders/accept":       `{}`,
		"/api/v1/swiggy/orders/ready":        `{}`,
	}

	tests := []struct {
		name    string
		call    func(ctx context.Context, c *Client) error
		path    string
		query   string
		wantErr error
	}{
		{
			name:  "zomato accept",
			call:  func(ctx context.Context, c *Client) error { return c.AcceptOrder(ctx, PlatformZomato, "Z1", 25) },
			path:  "/api/v1/zomato/orders/accept_order",
			query: "delivery_time=25&order_id=Z1",
		},
		{
			name:  "swiggy accept",
			call:  func(ctx context.Context, c *Client) error { return c.AcceptOrder(ctx, PlatformSwiggy, "S1", 30) },
			path:  "/api/v1/swiggy/orders/accept",
			query: "order_id=S1&prep_time=30",
		},
		{
			name:  "zomato ready",
			call:  func(ctx context.Context, c *Client) error { return c.MarkReady(ctx, PlatformZomato, "Z1") },
			path:  "/api/v1/zomato/orders/mark_ready",
			query: "order_id=Z1",
		},
		{
			name:  "swiggy ready",
			call:  func(ctx context.Context, c *Client) error { return c.MarkReady(ctx, PlatformSwiggy, "S1") },
			path:  "/api/v1/swiggy/orders/ready",
			query: "order_id=S1",
		},
		{
			name:  "zomato reject",
			call:  func(ctx context.Context, c *Client) error { return c.RejectOrder(ctx, PlatformZomato, "555", "Z1") },
			path:  "/api/v1/zomato/orders/reject",
			query: "order_id=Z1&restaurant_id=555",
		},
		{
			name:    "swiggy reject unsupported",
			call:    func(ctx context.Context, c *Client) error { return c.RejectOrder(ctx, PlatformSwiggy, "9", "S1") },
			wantErr: ErrUnsupportedPlatform,
		},
		{
			name:    "unknown platform",
			call:    func(ctx context.Context, c *Client) error { return c.MarkReady(ctx, "ubereats", "U1") },
			wantErr: ErrUnsupportedPlatform,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestBridge(t, okRoutes)
			err := tt.call(context.Background(), client)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if len(calls()) != 0 {
					t.Fatalf("unsupported action must not call the bridge")
				}
				return
			}
			if err != nil {
				t.Fatalf("action error = %v", err)
			}
			got := calls()
			if len(got) != 1 || got[0].method != http.MethodPost || got[0].path != tt.path || got[0].query != tt.query {
				t.Fatalf("unexpected calls %+v", got)
			}
		})
	}
}

func TestActions_ErrorStatus(t *testing.T) {
	client, _ := newTestBridge(t, map[string]string{})
	if err := client.MarkReady(context.Background(), PlatformZomato, "Z1"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(&config.BridgeConfig{Timeout: time.Second}, nil)
	if err := client.MarkReady(context.Background(), PlatformZomato, "Z1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestWebhookOrder_External(t *testing.T) {
	var batch struct {
		Orders []WebhookOrder `json:"orders"`
	}
	raw := `{"orders": [
		{"vendor": "Zomato", "resId": 555, "orderId": 9001, "data": {"id": 9001, "resId": 555}},
		{"vendor": "Swiggy", "resId": "77", "orderId": "S5", "data": {"id": "S5", "restaurant_id": "77"}}
	]}`
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if batch.Orders[0].OrderID != "9001" || batch.Orders[1].ResID != "77" {
		t.Fatalf("ids not decoded: %+v", batch.Orders)
	}

	var platforms []string
	for _, w := range batch.Orders {
		ext, err := w.External()
		if err != nil {
			t.Fatalf("External() error = %v", err)
		}
		if ext.Bucket != BucketNew {
			t.Fatalf("pushed orders should land in %s, got %s", BucketNew, ext.Bucket)
		}
		platforms = append(platforms, ext.Platform)
		if ext.Platform == PlatformZomato {
			var wrapped map[string]json.RawMessage
			if err := json.Unmarshal(ext.Payload, &wrapped); err != nil || wrapped["order"] == nil {
				t.Fatalf("zomato payload should be wrapped under order, got %s", ext.Payload)
			}
		}
	}
	sort.Strings(platforms)
	if platforms[0] != PlatformSwiggy || platforms[1] != PlatformZomato {
		t.Fatalf("unexpected platforms %v", platforms)
	}
}
