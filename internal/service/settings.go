package service

import (
	"context"
	"errors"
	"fmt"

	"tableorder-service/internal/model"
	"tableorder-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SettingTaxRate      = "tax_rate"
	SettingDiscountRate = "discount_rate"
)

// TenantSettings resolves key/value settings. A tenant value overrides the global one.
type TenantSettings interface {
	// GetSetting returns nil without error when the key is unset
	GetSetting(ctx context.Context, key string, tenantID *uint) (*string, error)
}

// GormSettings is the TenantSettings backed by the settings table
type GormSettings struct {
	db *gorm.DB
}

func NewGormSettings(db *gorm.DB) *GormSettings {
	return &GormSettings{db: db}
}

func (s *GormSettings) GetSetting(ctx context.Context, key string, tenantID *uint) (*string, error) {
	db := s.db.WithContext(ctx)

	if tenantID != nil {
		value, err := findSetting(db.Where("tenant_id = ? AND setting_key = ?", *tenantID, key))
		if err != nil || value != nil {
			return value, err
		}
	}
	return findSetting(db.Where("tenant_id IS NULL AND setting_key = ?", key))
}

func findSetting(query *gorm.DB) (*string, error) {
	var setting model.Setting
	err := query.First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read setting: %w", err)
	}
	return &setting.SettingValue, nil
}

// rate reads a fractional rate setting. Unset, malformed or negative values count as zero.
func rate(ctx context.Context, settings TenantSettings, key string, tenantID uint) (decimal.Decimal, error) {
	raw, err := settings.GetSetting(ctx, key, &tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil || *raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil || value.IsNegative() {
		logger.FromContext(ctx).Warn("Ignoring invalid rate setting",
			zap.String("key", key),
			zap.String("value", *raw),
			zap.Uint("tenant_id", tenantID))
		return decimal.Zero, nil
	}
	return value, nil
}
