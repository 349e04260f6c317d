package database

import (
	"fmt"

	"tableorder-service/internal/model"
	"tableorder-service/pkg/config"
	"tableorder-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB connects to PostgreSQL with the configured pool settings and runs migrations
func InitDB(cfg *config.DBConfig) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	conn, err := Open(postgres.New(pgConfig), cfg.LogLevel)
	if err != nil {
		logger.GetLogger().Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		logger.GetLogger().Error("Failed to get database object", zap.Error(err))
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.GetLogger().Info("Database connected successfully")

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	db = conn
	return db, nil
}

// Open opens a gorm connection with unique violations translated to gorm.ErrDuplicatedKey
func Open(dialector gorm.Dialector, level gormlogger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
}

// Migrate creates or updates every table the service owns
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}
