package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderType string

const (
	OrderTypeRegular OrderType = "regular"
	OrderTypeAddon   OrderType = "addon"
	OrderTypeOnline  OrderType = "online"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further status transition is possible
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentRequested PaymentStatus = "Requested"
	PaymentApproved  PaymentStatus = "Approved"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentRefunded  PaymentStatus = "Refunded"
)

// Unsettled reports whether the bill is still open
func (p PaymentStatus) Unsettled() bool {
	return p == PaymentPending || p == PaymentRequested || p == PaymentFailed
}

const (
	PlatformZomato = "zomato"
	PlatformSwiggy = "swiggy"
)

// Pending action codes shared with the bridge client. A confirmation code is the action code plus one.
const (
	ActionNone   = 0
	ActionAccept = 1
	ActionReady  = 3
	ActionReject = 5

	ConfirmedAccept = 2
	ConfirmedReady  = 4
	ConfirmedReject = 6
)

// Order is a dine-in or aggregator order
type Order struct {
	ID                  uint            `json:"id" gorm:"primarykey"`
	TenantID            uint            `json:"tenant_id" gorm:"not null;index;uniqueIndex:idx_orders_tenant_number,priority:1"`
	SessionID           *uint           `json:"session_id" gorm:"index"`
	TableID             *uint           `json:"table_id" gorm:"index"`
	OrderNumber         string          `json:"order_number" gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_tenant_number,priority:2"`
	OrderType           OrderType       `json:"order_type" gorm:"type:varchar(20);not null"`
	OrderStatus         OrderStatus     `json:"order_status" gorm:"type:varchar(20);not null;index"`
	PaymentStatus       PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null"`
	PaymentMethod       *string         `json:"payment_method" gorm:"type:varchar(30)"`
	CustomerName        *string         `json:"customer_name" gorm:"type:varchar(255)"`
	CustomerPhone       *string         `json:"customer_phone" gorm:"type:varchar(30)"`
	SpecialInstructions string          `json:"special_instructions" gorm:"type:text"`
	Subtotal            decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	TaxAmount           decimal.Decimal `json:"tax_amount" gorm:"type:decimal(10,2);not null"`
	DiscountAmount      decimal.Decimal `json:"discount_amount" gorm:"type:decimal(10,2);not null"`
	TotalAmount         decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	AppliedTaxRate      decimal.Decimal `json:"applied_tax_rate" gorm:"type:decimal(6,4);not null"`
	AppliedDiscountRate decimal.Decimal `json:"applied_discount_rate" gorm:"type:decimal(6,4);not null"`
	ExternalPlatform    *string         `json:"external_platform" gorm:"type:varchar(20);uniqueIndex:idx_orders_external,priority:2"`
	ExternalOrderID     *string         `json:"external_order_id" gorm:"type:varchar(100);uniqueIndex:idx_orders_external,priority:1"`
	ExternalOutletID    *string         `json:"external_outlet_id" gorm:"type:varchar(100);index"`
	RawStatus           *string         `json:"raw_status" gorm:"type:varchar(50)"`
	RawPayload          datatypes.JSON  `json:"-"`
	PendingAction       int             `json:"pending_action" gorm:"not null;index"`
	PrepTimeMinutes     int             `json:"prep_time_minutes"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Items               []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// AppliedCustomization is the priced snapshot of one selected option
type AppliedCustomization struct {
	GroupID       uint            `json:"group_id"`
	GroupName     string          `json:"group_name"`
	OptionID      uint            `json:"option_id"`
	OptionName    string          `json:"option_name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// OrderItem is immutable once priced
type OrderItem struct {
	ID                  uint                                      `json:"id" gorm:"primarykey"`
	OrderID             uint                                      `json:"order_id" gorm:"not null;index"`
	MenuItemID          *uint                                     `json:"menu_item_id"`
	ItemName            string                                    `json:"item_name" gorm:"type:varchar(255);not null"`
	ItemCategory        string                                    `json:"item_category" gorm:"type:varchar(100)"`
	Quantity            int                                       `json:"quantity" gorm:"not null"`
	UnitPrice           decimal.Decimal                           `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	TotalPrice          decimal.Decimal                           `json:"total_price" gorm:"type:decimal(10,2);not null"`
	Customizations      datatypes.JSONSlice[AppliedCustomization] `json:"customizations"`
	SpiceLevel          *string                                   `json:"spice_level" gorm:"type:varchar(20)"`
	SpecialInstructions string                                    `json:"special_instructions" gorm:"type:text"`
	CreatedAt           time.Time                                 `json:"created_at"`
}

// All returns every persisted model in migration order
func All() []any {
	return []any{
		&Restaurant{},
		&Table{},
		&Session{},
		&MenuItem{},
		&CustomizationGroup{},
		&CustomizationOption{},
		&ItemCustomization{},
		&Setting{},
		&Order{},
		&OrderItem{},
	}
}
