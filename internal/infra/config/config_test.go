package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Session.AccessTTL != 24*time.Hour {
		t.Fatalf("expected 24h access ttl, got %v", cfg.Session.AccessTTL)
	}
	if cfg.Session.MaxLifetime != 7*24*time.Hour {
		t.Fatalf("expected 168h max lifetime, got %v", cfg.Session.MaxLifetime)
	}
	if cfg.Audit.QueueSize != 1024 {
		t.Fatalf("expected audit queue size 1024, got %d", cfg.Audit.QueueSize)
	}
	if cfg.Redis.KeyPrefix != "backoffice" {
		t.Fatalf("expected key prefix backoffice, got %q", cfg.Redis.KeyPrefix)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("BACKOFFICE_SESSION_ACCESS_TTL", "2h")
	t.Setenv("BACKOFFICE_APP_PORT", "9000")
	t.Setenv("BACKOFFICE_SESSION_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.AccessTTL != 2*time.Hour {
		t.Fatalf("expected 2h access ttl, got %v", cfg.Session.AccessTTL)
	}
	if cfg.App.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.App.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := &AppConfig{App: AppSettings{Port: 8080}, Session: SessionSettings{SigningSecret: "short"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for short signing secret")
	}
}
