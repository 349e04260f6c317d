package service

import (
	"context"
	"errors"
	"fmt"

	"tableorder-service/internal/model"

	"gorm.io/gorm"
)

// MenuCatalog reads menu data. Reads are unlocked; menus change far less often than orders arrive.
type MenuCatalog interface {
	// FindByID returns nil without error when the item does not exist
	FindByID(ctx context.Context, itemID uint) (*model.MenuItem, error)
	FindCustomizationsForItem(ctx context.Context, itemID uint) ([]model.CustomizationGroup, error)
}

// GormCatalog is the MenuCatalog backed by the menu tables
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) FindByID(ctx context.Context, itemID uint) (*model.MenuItem, error) {
	var item model.MenuItem
	err := c.db.WithContext(ctx).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find menu item %d: %w", itemID, err)
	}
	return &item, nil
}

func (c *GormCatalog) FindCustomizationsForItem(ctx context.Context, itemID uint) ([]model.CustomizationGroup, error) {
	var groups []model.CustomizationGroup
	err := c.db.WithContext(ctx).
		Joins("JOIN item_customizations ic ON ic.group_id = customization_groups.id").
		Where("ic.menu_item_id = ?", itemID).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC, id ASC")
		}).
		Order("customization_groups.id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("find customizations for item %d: %w", itemID, err)
	}
	return groups, nil
}
