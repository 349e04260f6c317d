package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// SessionConfig controls table session lifetimes
type SessionConfig struct {
	TTL         time.Duration
	GracePeriod time.Duration
}

// OrderConfig controls order number generation
type OrderConfig struct {
	NumberAttempts  int
	DefaultTimezone string
}

// BridgeConfig holds the aggregator bridge settings
type BridgeConfig struct {
	BaseURL         string
	AccessToken     string
	Timeout         time.Duration
	PollInterval    time.Duration
	Enabled         bool
	WebhookSecret   string
	DefaultPrepTime int
}

// AMQPConfig holds the order event broker settings. An empty URL disables publishing.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Session     SessionConfig
	Order       OrderConfig
	Bridge      BridgeConfig
	AMQP        AMQPConfig
}

// Load loads configuration from environment variables, reading a .env file first when present
func Load(serviceName string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "tableorder"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "tableorder"),
		},
		Session: SessionConfig{
			TTL:         getEnvAsDuration("SESSION_TTL", 45*time.Minute),
			GracePeriod: getEnvAsDuration("SESSION_GRACE_PERIOD", 10*time.Minute),
		},
		Order: OrderConfig{
			NumberAttempts:  getEnvAsInt("ORDER_NUMBER_ATTEMPTS", 5),
			DefaultTimezone: getEnv("ORDER_DEFAULT_TIMEZONE", "UTC"),
		},
		Bridge: BridgeConfig{
			BaseURL:         getEnv("DYNO_BASE_URL", ""),
			AccessToken:     getEnv("DYNO_ACCESS_TOKEN", ""),
			Timeout:         getEnvAsDuration("DYNO_TIMEOUT", 10*time.Second),
			PollInterval:    getEnvAsDuration("DYNO_POLL_INTERVAL", 30*time.Second),
			Enabled:         getEnvAsBool("DYNO_SYNC_ENABLED", false),
			WebhookSecret:   getEnv("DYNO_WEBHOOK_SECRET", ""),
			DefaultPrepTime: getEnvAsInt("DYNO_DEFAULT_PREP_TIME", 30),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "order_events"),
		},
	}

	if config.Order.NumberAttempts < 1 {
		return nil, fmt.Errorf("ORDER_NUMBER_ATTEMPTS must be positive, got %d", config.Order.NumberAttempts)
	}
	if _, err := time.LoadLocation(config.Order.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid ORDER_DEFAULT_TIMEZONE %q: %w", config.Order.DefaultTimezone, err)
	}

	return config, nil
}

// LogConfig returns the configuration as zap fields, without secrets
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Duration("session_ttl", c.Session.TTL),
		zap.Bool("bridge_sync_enabled", c.Bridge.Enabled),
		zap.Duration("bridge_poll_interval", c.Bridge.PollInterval),
		zap.Bool("amqp_enabled", c.AMQP.URL != ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
