package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"ariga.io/atlas-go-sdk/atlasexec"
	_ "modernc.org/sqlite"

	"github.com/heatline/core/internal/config"
	"github.com/heatline/core/internal/server"
	"github.com/heatline/core/internal/store"
	"github.com/heatline/core/internal/vendor"
)

func main() {
	cfg := config.FromEnv()
	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(4)

	// Enable foreign keys explicitly — required for SQLite.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		log.Fatalf("enabling foreign keys: %v", err)
	}

	// Apply pending Atlas versioned migrations.
	// Convert Go SQLite DSN (file:path?params) to Atlas URL (sqlite://path?params).
	atlasURL := "sqlite://" + strings.TrimPrefix(cfg.DatabaseURL, "file:")
	atlasClient, err := atlasexec.NewClient(".", "atlas")
	if err != nil {
		log.Fatalf("initializing atlas client: %v", err)
	}
	res, err := atlasClient.MigrateApply(ctx, &atlasexec.MigrateApplyParams{
		URL:    atlasURL,
		DirURL: "file://migrations?format=golang-migrate",
	})
	if err != nil {
		log.Fatalf("applying migrations: %v", err)
	}
	log.Printf("database migrated: %d applied\n", len(res.Applied))

	var vendorClient *vendor.Client
	if cfg.VendorAPIKey != "" {
		vendorClient = vendor.NewClient(cfg.VendorAPIKey)
	} else {
		log.Printf("VENDOR_API_KEY not set; vendor-backed ingest routes disabled")
	}

	if err := server.Run(ctx, server.Config{
		Port:          cfg.Port,
		Store:         store.NewSQLiteStore(db),
		VendorClient:  vendorClient,
		WebhookSecret: cfg.IngestWebhookSecret,
		CronSecret:    cfg.CronSecret,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
