package config

import (
	"testing"
	"time"

	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("tableorder-service")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.TTL != 45*time.Minute {
		t.Fatalf("expected 45m session ttl, got %v", cfg.Session.TTL)
	}
	if cfg.Session.GracePeriod != 10*time.Minute {
		t.Fatalf("expected 10m grace period, got %v", cfg.Session.GracePeriod)
	}
	if cfg.Order.NumberAttempts != 5 {
		t.Fatalf("expected 5 order number attempts, got %d", cfg.Order.NumberAttempts)
	}
	if cfg.Bridge.PollInterval != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %v", cfg.Bridge.PollInterval)
	}
	if cfg.Bridge.Enabled {
		t.Fatalf("expected bridge sync to be disabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("DYNO_SYNC_ENABLED", "true")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load("tableorder-service")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DB.Host != "db.internal" {
		t.Fatalf("expected db host override, got %q", cfg.DB.Host)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", cfg.Session.TTL)
	}
	if !cfg.Bridge.Enabled {
		t.Fatalf("expected bridge sync enabled")
	}
	if cfg.DB.LogLevel != logger.Silent {
		t.Fatalf("expected silent gorm log level")
	}
	if cfg.DB.MaxOpenConns != 100 {
		t.Fatalf("expected fallback to default for malformed int, got %d", cfg.DB.MaxOpenConns)
	}
}

func TestLoad_RejectsInvalidTimezone(t *testing.T) {
	t.Setenv("ORDER_DEFAULT_TIMEZONE", "Mars/Olympus")
	if _, err := Load("tableorder-service"); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	want := "host=h port=1 user=u password=p dbname=d sslmode=disable"
	if got := c.GetDSN(); got != want {
		t.Fatalf("GetDSN() = %q, want %q", got, want)
	}
}
