package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvPaystackSecret, "sk_test_secret")
	t.Setenv(EnvDownloadSecret, "download-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.DownloadTTL != 24*time.Hour {
		t.Fatalf("unexpected download ttl: %v", cfg.DownloadTTL)
	}
	if cfg.RateLimitWindow != 60*time.Second || cfg.Downloads.RateLimitMax != 5 {
		t.Fatalf("unexpected rate limit defaults: %v / %d", cfg.RateLimitWindow, cfg.Downloads.RateLimitMax)
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Fatalf("unexpected gateway timeout: %v", cfg.GatewayTimeout)
	}
	if string(cfg.PaystackSecret) != "sk_test_secret" {
		t.Fatalf("paystack secret not loaded")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv(EnvPaystackSecret, "")
	t.Setenv(EnvDownloadSecret, "")

	if _, err := Load(""); !errors.Is(err, ErrMissingPaystackSecret) {
		t.Fatalf("expected missing paystack secret error, got %v", err)
	}

	t.Setenv(EnvPaystackSecret, "sk_test_secret")
	if _, err := Load(""); !errors.Is(err, ErrMissingDownloadSecret) {
		t.Fatalf("expected missing download secret error, got %v", err)
	}
}

func TestLoadFromFileWithOverrides(t *testing.T) {
	t.Setenv(EnvPaystackSecret, "sk_test_secret")
	t.Setenv(EnvDownloadSecret, "download-secret")
	t.Setenv(EnvPort, "9090")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 3000
downloads:
  default_ttl: 30m
  rate_limit_window: 10s
  rate_limit_max: 2
payments:
  failed_threshold: 5
  reset_interval: 1h
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("env override lost, port=%d", cfg.Server.Port)
	}
	if cfg.DownloadTTL != 30*time.Minute {
		t.Fatalf("unexpected ttl: %v", cfg.DownloadTTL)
	}
	if cfg.Downloads.RateLimitMax != 2 || cfg.RateLimitWindow != 10*time.Second {
		t.Fatalf("unexpected rate limit: %d / %v", cfg.Downloads.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.Payments.FailedThreshold != 5 || cfg.ResetInterval != time.Hour {
		t.Fatalf("unexpected payment settings")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv(EnvPaystackSecret, "sk_test_secret")
	t.Setenv(EnvDownloadSecret, "download-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative port")
	}
}
