package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. Secrets are never read from the YAML file.
const (
	EnvPaystackSecret = "EPCBOOKS_PAYSTACK_SECRET"
	EnvDownloadSecret = "EPCBOOKS_DOWNLOAD_SECRET"
	EnvPGDSN          = "EPCBOOKS_PG_DSN"
	EnvPort           = "EPCBOOKS_PORT"
	EnvSMTPUser       = "EPCBOOKS_SMTP_USER"
	EnvSMTPPass       = "EPCBOOKS_SMTP_PASS"
)

// Config mirrors the YAML configuration file.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		DownloadsDir string `yaml:"downloads_dir"`
		ImagesDir    string `yaml:"images_dir"`
	} `yaml:"storage"`

	Downloads struct {
		DefaultTTL      string `yaml:"default_ttl"`
		RateLimitWindow string `yaml:"rate_limit_window"`
		RateLimitMax    int    `yaml:"rate_limit_max"`
	} `yaml:"downloads"`

	Payments struct {
		GatewayBaseURL  string `yaml:"gateway_base_url"`
		Timeout         string `yaml:"timeout"`
		FailedThreshold int    `yaml:"failed_threshold"`
		ResetInterval   string `yaml:"reset_interval"`
	} `yaml:"payments"`

	Alerts struct {
		SMTPHost string `yaml:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port"`
		From     string `yaml:"from"`
		To       string `yaml:"to"`
	} `yaml:"alerts"`
}

// Parsed carries the config with duration strings resolved and secrets attached.
type Parsed struct {
	Config

	DownloadTTL     time.Duration
	RateLimitWindow time.Duration
	GatewayTimeout  time.Duration
	ResetInterval   time.Duration

	PaystackSecret []byte
	DownloadSecret []byte
	PGDSN          string
	SMTPUser       string
	SMTPPass       string
}

var (
	// ErrMissingPaystackSecret is returned when the webhook signing secret is absent.
	ErrMissingPaystackSecret = errors.New(EnvPaystackSecret + " is required")
	// ErrMissingDownloadSecret is returned when the token signing secret is absent.
	ErrMissingDownloadSecret = errors.New(EnvDownloadSecret + " is required")
)

// Load reads the YAML file (optional), applies defaults and environment
// overrides, and fails when either shared secret is missing.
func Load(path string) (*Parsed, error) {
	var cfg Config
	applyDefaults(&cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	p := &Parsed{Config: cfg}
	var err error
	if p.DownloadTTL, err = time.ParseDuration(cfg.Downloads.DefaultTTL); err != nil {
		return nil, fmt.Errorf("invalid downloads.default_ttl: %w", err)
	}
	if p.RateLimitWindow, err = time.ParseDuration(cfg.Downloads.RateLimitWindow); err != nil {
		return nil, fmt.Errorf("invalid downloads.rate_limit_window: %w", err)
	}
	if p.GatewayTimeout, err = time.ParseDuration(cfg.Payments.Timeout); err != nil {
		return nil, fmt.Errorf("invalid payments.timeout: %w", err)
	}
	if p.ResetInterval, err = time.ParseDuration(cfg.Payments.ResetInterval); err != nil {
		return nil, fmt.Errorf("invalid payments.reset_interval: %w", err)
	}

	// Both signing secrets are mandatory; refuse to start without them.
	paystack := strings.TrimSpace(os.Getenv(EnvPaystackSecret))
	if paystack == "" {
		return nil, ErrMissingPaystackSecret
	}
	download := strings.TrimSpace(os.Getenv(EnvDownloadSecret))
	if download == "" {
		return nil, ErrMissingDownloadSecret
	}
	p.PaystackSecret = []byte(paystack)
	p.DownloadSecret = []byte(download)

	p.PGDSN = strings.TrimSpace(os.Getenv(EnvPGDSN))
	p.SMTPUser = os.Getenv(EnvSMTPUser)
	p.SMTPPass = os.Getenv(EnvSMTPPass)
	return p, nil
}

func applyDefaults(cfg *Config) {
	cfg.Server.Port = 8080
	cfg.Storage.DownloadsDir = "private_downloads"
	cfg.Storage.ImagesDir = "images"
	cfg.Downloads.DefaultTTL = "24h"
	cfg.Downloads.RateLimitWindow = "60s"
	cfg.Downloads.RateLimitMax = 5
	cfg.Payments.GatewayBaseURL = "https://api.paystack.co"
	cfg.Payments.Timeout = "10s"
	cfg.Payments.FailedThreshold = 3
	cfg.Payments.ResetInterval = "24h"
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.Storage.DownloadsDir) == "" {
		return errors.New("storage.downloads_dir is required")
	}
	if cfg.Downloads.RateLimitMax <= 0 {
		return errors.New("downloads.rate_limit_max must be positive")
	}
	if cfg.Payments.FailedThreshold <= 0 {
		return errors.New("payments.failed_threshold must be positive")
	}
	if !strings.HasPrefix(cfg.Payments.GatewayBaseURL, "http") {
		return errors.New("payments.gateway_base_url must be an http(s) URL")
	}
	return nil
}
