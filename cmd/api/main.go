package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epcbooks.org/internal/catalog"
	"epcbooks.org/internal/catalog/pg"
	"epcbooks.org/internal/config"
	"epcbooks.org/internal/download"
	"epcbooks.org/internal/httpapi"
	"epcbooks.org/internal/mailer"
	"epcbooks.org/internal/monitor"
	"epcbooks.org/internal/obs"
	"epcbooks.org/internal/payment"
	"epcbooks.org/internal/token"
	"epcbooks.org/internal/webhook"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("EPCBOOKS_CONFIG"), "path to config.yaml")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Missing secrets are a refusal to start, not a degraded mode.
		log.Fatalf("config: %v", err)
	}

	// Catalog backend: Postgres when a DSN is set, in-memory otherwise.
	var (
		books catalog.Service
		db    *sql.DB
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		books = store
		db = store.DB()
		defer store.Close()
	} else {
		books = catalog.NewInMemory()
	}

	alerter := buildAlerter(cfg)
	tracker := monitor.NewTracker(cfg.Payments.FailedThreshold, alerter)
	stopReset := tracker.StartScheduledReset(cfg.ResetInterval)
	defer stopReset()

	codec := token.NewCodec(cfg.DownloadSecret)
	downloads := download.NewService(cfg.Storage.DownloadsDir, codec, cfg.DownloadTTL)
	gateway := payment.NewClient(cfg.Payments.GatewayBaseURL, string(cfg.PaystackSecret), cfg.GatewayTimeout)

	api := httpapi.New(httpapi.Deps{
		Ready:               httpapi.ReadyProbe{DB: db},
		Version:             version,
		Payments:            payment.NewOrchestrator(gateway, tracker, downloads),
		Verifier:            webhook.NewVerifier(cfg.PaystackSecret),
		Downloads:           downloads,
		Catalog:             books,
		ImagesDir:           cfg.Storage.ImagesDir,
		DownloadLimitMax:    cfg.Downloads.RateLimitMax,
		DownloadLimitWindow: cfg.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // large book downloads
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting epcbooks-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// buildAlerter returns the SMTP alerter when the config carries a full
// mail setup, and falls back to log-only alerts otherwise.
func buildAlerter(cfg *config.Parsed) monitor.Alerter {
	if cfg.Alerts.SMTPHost == "" || cfg.Alerts.To == "" {
		return mailer.LogOnly{}
	}
	m, err := mailer.NewSMTP(cfg.Alerts.SMTPHost, cfg.Alerts.SMTPPort,
		cfg.SMTPUser, cfg.SMTPPass, cfg.Alerts.From, cfg.Alerts.To)
	if err != nil {
		log.Printf("smtp alerter disabled: %v", err)
		return mailer.LogOnly{}
	}
	return m
}
