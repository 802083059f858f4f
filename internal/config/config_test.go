package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("ENV")
	os.Unsetenv("RATE_LIMIT_READ_MAX")
	os.Unsetenv("NUDGE_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.LogLevel)
	}

	if cfg.Env != "development" {
		t.Errorf("expected env 'development', got %s", cfg.Env)
	}

	if cfg.ReadLimitMax != 120 || cfg.ReadLimitWindow != 60 {
		t.Errorf("expected read quota 120/60s, got %d/%ds", cfg.ReadLimitMax, cfg.ReadLimitWindow)
	}

	if cfg.WriteLimitMax != 60 || cfg.WriteLimitWindow != 60 {
		t.Errorf("expected write quota 60/60s, got %d/%ds", cfg.WriteLimitMax, cfg.WriteLimitWindow)
	}

	if cfg.RateLimitMaxKeys != 10000 {
		t.Errorf("expected 10000 max keys, got %d", cfg.RateLimitMaxKeys)
	}

	if cfg.ReminderPageSize != 20 {
		t.Errorf("expected page size 20, got %d", cfg.ReminderPageSize)
	}

	if cfg.NudgeEnabled {
		t.Error("nudge worker should be off by default")
	}

	if cfg.NudgeAfterHours != 4 {
		t.Errorf("expected nudge after 4h, got %d", cfg.NudgeAfterHours)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("ENV", "production")
	os.Setenv("RATE_LIMIT_READ_MAX", "240")
	os.Setenv("NUDGE_ENABLED", "true")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("ENV")
		os.Unsetenv("RATE_LIMIT_READ_MAX")
		os.Unsetenv("NUDGE_ENABLED")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env 'production', got %s", cfg.Env)
	}

	if cfg.ReadLimitMax != 240 {
		t.Errorf("expected read quota 240, got %d", cfg.ReadLimitMax)
	}

	if !cfg.NudgeEnabled {
		t.Error("expected nudge worker enabled")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	os.Setenv("PORT", "not-a-number")
	defer os.Unsetenv("PORT")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}
