package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a sellable dish
type MenuItem struct {
	ID          uint            `json:"id" gorm:"primarykey"`
	TenantID    uint            `json:"tenant_id" gorm:"index;not null"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Category    string          `json:"category" gorm:"type:varchar(100)"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	IsAvailable bool            `json:"is_available" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CustomizationGroup groups options such as "Size" or "Extras"
type CustomizationGroup struct {
	ID       uint                  `json:"id" gorm:"primarykey"`
	TenantID uint                  `json:"tenant_id" gorm:"index;not null"`
	Name     string                `json:"name" gorm:"type:varchar(100);not null"`
	Options  []CustomizationOption `json:"options" gorm:"foreignKey:GroupID"`
}

// CustomizationOption carries a price delta applied to the base item price
type CustomizationOption struct {
	ID            uint            `json:"id" gorm:"primarykey"`
	GroupID       uint            `json:"group_id" gorm:"index;not null"`
	Name          string          `json:"name" gorm:"type:varchar(100);not null"`
	PriceModifier decimal.Decimal `json:"price_modifier" gorm:"type:decimal(10,2);not null"`
	IsAvailable   bool            `json:"is_available" gorm:"not null"`
	DisplayOrder  int             `json:"display_order"`
}

// ItemCustomization links a menu item to a customization group
type ItemCustomization struct {
	ID         uint `json:"id" gorm:"primarykey"`
	MenuItemID uint `json:"menu_item_id" gorm:"not null;uniqueIndex:idx_item_customizations,priority:1"`
	GroupID    uint `json:"group_id" gorm:"not null;uniqueIndex:idx_item_customizations,priority:2"`
}

// Setting is a key/value configuration entry. A nil TenantID marks a global default.
type Setting struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	TenantID     *uint     `json:"tenant_id" gorm:"uniqueIndex:idx_settings_tenant_key,priority:1"`
	SettingKey   string    `json:"setting_key" gorm:"type:varchar(100);not null;uniqueIndex:idx_settings_tenant_key,priority:2"`
	SettingValue string    `json:"setting_value" gorm:"type:text"`
	UpdatedAt    time.Time `json:"updated_at"`
}
