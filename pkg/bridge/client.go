package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"tableorder-service/pkg/config"
	"tableorder-service/prometheus"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	PlatformZomato = "zomato"
	PlatformSwiggy = "swiggy"

	// BucketNew is the Zomato bucket pushed orders are treated as
	BucketNew = "new_orders"

	detailConcurrency = 8
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNotConfigured       = errors.New("bridge base url not configured")
)

// Client talks to the aggregator bridge that relays Zomato and Swiggy storefronts
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// ExternalOrder is one vendor payload. Zomato payloads are order detail responses
// ({"order": {...}}) tagged with the dashboard bucket they were listed under.
type ExternalOrder struct {
	Platform string          `json:"platform"`
	Bucket   string          `json:"bucket,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// WebhookOrder is one entry of a pushed order batch
type WebhookOrder struct {
	Vendor  string          `json:"vendor"`
	Data    json.RawMessage `json:"data"`
	ResID   FlexString      `json:"resId"`
	OrderID FlexString      `json:"orderId"`
}

// External converts a pushed order into the shape returned by a poll
func (w WebhookOrder) External() (ExternalOrder, error) {
	ext := ExternalOrder{Platform: normalizeVendor(w.Vendor), Bucket: BucketNew, Payload: w.Data}
	if ext.Platform != PlatformZomato {
		return ext, nil
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{"order": w.Data})
	if err != nil {
		return ExternalOrder{}, fmt.Errorf("wrap zomato payload: %w", err)
	}
	ext.Payload = wrapped
	return ext, nil
}

// FlexString accepts JSON strings and numbers, vendors send ids as either
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// NewClient creates a bridge client from config
func NewClient(cfg *config.BridgeConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:     cfg.BaseURL,
		AccessToken: cfg.AccessToken,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		Logger:      logger,
	}
}

// FetchOrders pulls current orders from both platforms in parallel. A platform that
// fails is logged and skipped; an error is returned only when both fail.
func (c *Client) FetchOrders(ctx context.Context) ([]ExternalOrder, error) {
	var (
		g                  errgroup.Group
		zomato, swiggy     []ExternalOrder
		zomatoErr, swigErr error
	)
	g.Go(func() error {
		zomato, zomatoErr = c.fetchZomato(ctx)
		return nil
	})
	g.Go(func() error {
		swiggy, swigErr = c.fetchSwiggy(ctx)
		return nil
	})
	_ = g.Wait()

	if zomatoErr != nil {
		c.Logger.Warn("Zomato fetch failed", zap.Error(zomatoErr))
	}
	if swigErr != nil {
		c.Logger.Warn("Swiggy fetch failed", zap.Error(swigErr))
	}
	if zomatoErr != nil && swigErr != nil {
		return nil, errors.Join(zomatoErr, swigErr)
	}

	orders := append(zomato, swiggy...)
	c.Logger.Info("Fetched aggregator orders",
		zap.Int("zomato", len(zomato)),
		zap.Int("swiggy", len(swiggy)))
	return orders, nil
}

type zomatoSummary struct {
	OrderID FlexString `json:"order_id"`
	TabID   FlexString `json:"tab_id"`
}

type zomatoBucket struct {
	Entities []zomatoSummary `json:"entities"`
}

// fetchZomato lists the bucketed summaries and fetches each order's detail
func (c *Client) fetchZomato(ctx context.Context) ([]ExternalOrder, error) {
	body, err := c.call(ctx, "fetch_zomato", http.MethodGet, "/api/v1/zomato/orders/current", nil)
	if err != nil {
		return nil, err
	}

	type pending struct {
		id     string
		bucket string
	}
	var summaries []pending
	collect := func(raw map[string]json.RawMessage) {
		for bucket, val := range raw {
			var b zomatoBucket
			if err := json.Unmarshal(val, &b); err != nil {
				continue
			}
			for _, s := range b.Entities {
				id := s.OrderID.String()
				if id == "" {
					id = s.TabID.String()
				}
				if id != "" {
					summaries = append(summaries, pending{id: id, bucket: bucket})
				}
			}
		}
	}

	var asList []map[string]json.RawMessage
	if err := json.Unmarshal(body, &asList); err == nil {
		for _, raw := range asList {
			collect(raw)
		}
	} else {
		var asObject map[string]json.RawMessage
		if err := json.Unmarshal(body, &asObject); err != nil {
			return nil, fmt.Errorf("decode zomato orders: %w", err)
		}
		collect(asObject)
	}

	var (
		mu     sync.Mutex
		orders = make([]ExternalOrder, 0, len(summaries))
		g      errgroup.Group
	)
	g.SetLimit(detailConcurrency)
	for _, s := range summaries {
		g.Go(func() error {
			detail, err := c.ZomatoOrderDetails(ctx, s.id)
			if err != nil {
				c.Logger.Warn("Zomato order detail failed", zap.String("order_id", s.id), zap.Error(err))
				return nil
			}
			mu.Lock()
			orders = append(orders, ExternalOrder{Platform: PlatformZomato, Bucket: s.bucket, Payload: detail})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return orders, nil
}

// ZomatoOrderDetails returns the raw detail response for one order
func (c *Client) ZomatoOrderDetails(ctx context.Context, orderID string) (json.RawMessage, error) {
	body, err := c.call(ctx, "zomato_details", http.MethodGet, "/api/v1/zomato/order/details", url.Values{"order_id": {orderID}})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) fetchSwiggy(ctx context.Context) ([]ExternalOrder, error) {
	body, err := c.call(ctx, "fetch_swiggy", http.MethodGet, "/api/v1/swiggy/orders", nil)
	if err != nil {
		return nil, err
	}

	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Orders []json.RawMessage `json:"orders"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decode swiggy orders: %w", err)
		}
		list = wrapped.Orders
	}

	orders := make([]ExternalOrder, 0, len(list))
	for _, raw := range list {
		orders = append(orders, ExternalOrder{Platform: PlatformSwiggy, Payload: raw})
	}
	return orders, nil
}

// AcceptOrder accepts an order with the promised preparation time in minutes
func (c *Client) AcceptOrder(ctx context.Context, platform, orderID string, prepMinutes int) error {
	prep := strconv.Itoa(prepMinutes)
	switch platform {
	case PlatformZomato:
		_, err := c.call(ctx, "accept", http.MethodPost, "/api/v1/zomato/orders/accept_order",
			url.Values{"order_id": {orderID}, "delivery_time": {prep}})
		return err
	case PlatformSwiggy:
		_, err := c.call(ctx, "accept", http.MethodPost, "/api/v1/swiggy/orders/accept",
			url.Values{"order_id": {orderID}, "prep_time": {prep}})
		return err
	}
	return fmt.Errorf("accept on %q: %w", platform, ErrUnsupportedPlatform)
}

// MarkReady tells the platform the food is ready for pickup
func (c *Client) MarkReady(ctx context.Context, platform, orderID string) error {
	switch platform {
	case PlatformZomato:
		_, err := c.call(ctx, "mark_ready", http.MethodPost, "/api/v1/zomato/orders/mark_ready", url.Values{"order_id": {orderID}})
		return err
	case PlatformSwiggy:
		_, err := c.call(ctx, "mark_ready", http.MethodPost, "/api/v1/swiggy/orders/ready", url.Values{"order_id": {orderID}})
		return err
	}
	return fmt.Errorf("mark ready on %q: %w", platform, ErrUnsupportedPlatform)
}

// RejectOrder rejects an order. Only Zomato exposes a direct reject.
func (c *Client) RejectOrder(ctx context.Context, platform, outletID, orderID string) error {
	if platform != PlatformZomato {
		return fmt.Errorf("reject on %q: %w", platform, ErrUnsupportedPlatform)
	}
	_, err := c.call(ctx, "reject", http.MethodPost, "/api/v1/zomato/orders/reject",
		url.Values{"restaurant_id": {outletID}, "order_id": {orderID}})
	return err
}

// call performs one authenticated request and records its outcome
func (c *Client) call(ctx context.Context, action, method, path string, query url.Values) ([]byte, error) {
	body, err := c.do(ctx, method, path, query)
	prometheus.RecordBridgeCall(action, err)
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		c.Logger.Error("Bridge request returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return body, nil
}

func normalizeVendor(vendor string) string {
	return strings.ToLower(strings.TrimSpace(vendor))
}
