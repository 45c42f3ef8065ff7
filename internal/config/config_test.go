package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("SessionTTL = %v, want 168h", cfg.SessionTTL)
	}
	if cfg.AuditRetention != 720*time.Hour {
		t.Errorf("AuditRetention = %v, want 720h", cfg.AuditRetention)
	}
	if cfg.MaxUploadBytes != 10485760 {
		t.Errorf("MaxUploadBytes = %d, want 10485760", cfg.MaxUploadBytes)
	}
	if cfg.RateLimits.InviteRedeem != 10 {
		t.Errorf("RateLimits.InviteRedeem = %d, want 10", cfg.RateLimits.InviteRedeem)
	}
	if cfg.RateLimits.Global != 300 {
		t.Errorf("RateLimits.Global = %d, want 300", cfg.RateLimits.Global)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("DB_DSN", "postgres://app@db/possumbly")
	t.Setenv("RATE_VOTE", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DBDSN != "postgres://app@db/possumbly" {
		t.Errorf("DBDSN = %q", cfg.DBDSN)
	}
	if cfg.RateLimits.Vote != 5 {
		t.Errorf("RateLimits.Vote = %d, want 5", cfg.RateLimits.Vote)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	if _, err := Load(context.Background()); err == nil {
		t.Fatal("Load() succeeded without SESSION_SECRET")
	}
}
