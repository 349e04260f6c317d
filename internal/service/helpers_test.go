package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tableorder-service/internal/model"
	"tableorder-service/internal/testutil"
	"tableorder-service/pkg/config"
	"tableorder-service/pkg/messaging"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event messaging.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	fixture  testutil.Fixture
	sessions *SessionManager
	orders   *OrderService
	tables   *TableService
	events   *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithNumbers(t, nil)
}

func newTestEnvWithNumbers(t *testing.T, numbers NumberGenerator) *testEnv {
	t.Helper()

	return newTestEnvOn(t, testutil.NewDB(t), numbers)
}

func newTestEnvOn(t *testing.T, db *gorm.DB, numbers NumberGenerator) *testEnv {
	t.Helper()

	fixture := testutil.Seed(t, db, "100.00")

	if numbers == nil {
		seq, err := NewDailySequence("UTC")
		if err != nil {
			t.Fatalf("NewDailySequence() error = %v", err)
		}
		numbers = seq
	}

	sessions := NewSessionManager(db, config.SessionConfig{TTL: 45 * time.Minute, GracePeriod: 10 * time.Minute})
	events := &recordingPublisher{}
	orders := NewOrderService(OrderServiceConfig{
		DB:             db,
		Sessions:       sessions,
		Numbers:        numbers,
		Catalog:        NewGormCatalog(db),
		Settings:       NewGormSettings(db),
		Events:         events,
		NumberAttempts: 5,
		RetryBackoff:   time.Millisecond,
	})

	return &testEnv{
		db:       db,
		fixture:  fixture,
		sessions: sessions,
		orders:   orders,
		tables:   NewTableService(db, sessions),
		events:   events,
	}
}

func (e *testEnv) tenantID() uint {
	return e.fixture.Restaurant.ID
}

// order places one unit of the fixture item on tableID
func (e *testEnv) order(t *testing.T, tableID uint, token string) *CreateOrderResult {
	t.Helper()
	result, err := e.orders.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:      tableID,
		Items:        []OrderItemInput{{MenuItemID: e.fixture.MenuItem.ID, Quantity: 1}},
		SessionToken: token,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	return result
}

func (e *testEnv) setStatus(t *testing.T, orderID uint, status model.OrderStatus) {
	t.Helper()
	if err := e.db.Model(&model.Order{}).Where("id = ?", orderID).Update("order_status", status).Error; err != nil {
		t.Fatalf("set status: %v", err)
	}
}

func (e *testEnv) reload(t *testing.T, orderID uint) model.Order {
	t.Helper()
	var order model.Order
	if err := e.db.First(&order, orderID).Error; err != nil {
		t.Fatalf("reload order %d: %v", orderID, err)
	}
	return order
}

func (e *testEnv) reloadSession(t *testing.T, sessionID uint) model.Session {
	t.Helper()
	var session model.Session
	if err := e.db.First(&session, sessionID).Error; err != nil {
		t.Fatalf("reload session %d: %v", sessionID, err)
	}
	return session
}

func (e *testEnv) setSetting(t *testing.T, tenantID *uint, key, value string) {
	t.Helper()
	testutil.MustCreate(t, e.db, &model.Setting{TenantID: tenantID, SettingKey: key, SettingValue: value})
}

func (e *testEnv) addTable(t *testing.T, number string, available bool) model.Table {
	t.Helper()
	table := model.Table{TenantID: e.tenantID(), TableNumber: number, Capacity: 2, IsAvailable: available}
	testutil.MustCreate(t, e.db, &table)
	return table
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
