package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"myhome_scrooper/config"
	"myhome_scrooper/httputil"
	"myhome_scrooper/logging"
	"myhome_scrooper/scheduler"
	"myhome_scrooper/scraper"
	"myhome_scrooper/services"
	"myhome_scrooper/storage"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run scrape once and exit")
	outDir    = flag.String("out", "", "Output directory for CSV/XLSX exports (overrides OUTPUT_DIR)")
	showRuns  = flag.Int("runs", 0, "Print the N most recent runs and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Printf("Starting myhome_scrooper for %s (%s)", cfg.Site.Name, cfg.Site.BaseURL)

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *showRuns > 0 {
		if err := printRuns(sqliteStore, *showRuns); err != nil {
			log.Fatalf("Failed to read runs: %v", err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exporter := services.NewExportService(cfg.Output, sqliteStore)

	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare Postgres schema: %v", err)
		}
		exporter.SetWarehouse(pgStore)
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to configure S3: %v", err)
		}
		exporter.SetUploader(uploader)
		log.Printf("Uploading exports to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	client := scraper.NewClient(httputil.NewScrapingClient(cfg.Scraper, cfg.Proxy), cfg.Site, cfg.Scraper)
	fetcher := scraper.NewFetcher(client, cfg.Scraper)
	orchestrator := scraper.NewOrchestrator(cfg.Site, sqliteStore, fetcher, exporter)

	sched := scheduler.New(cfg.Scheduler, orchestrator)
	if *scrapeNow || !sched.Enabled() {
		log.Println("Running scrape...")
		run, err := orchestrator.RunOnce(ctx)
		if run != nil {
			log.Printf("Run %s finished: %s, %d listings, %d with phone numbers",
				run.ID, run.Status, run.ListingsFound, run.WithPhone)
		}
		if err != nil {
			if errors.Is(err, scraper.ErrNoListings) {
				log.Fatalf("Scrape failed: %v", err)
			}
			log.Printf("Scrape finished with errors: %v", err)
		}
		return
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Println("Daemon running. Press Ctrl+C to stop.")

	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func printRuns(store *storage.SQLiteStore, n int) error {
	runs, err := store.GetRecentRuns(n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-9s  %6d listings  %6d phones  %4d errors  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.ID, r.Status,
			r.ListingsFound, r.WithPhone, r.ErrorsCount, r.Duration().Round(time.Second))
	}
	return nil
}

// maskConnectionString masks the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, ok := u.User.Password(); !ok {
		return connStr
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
