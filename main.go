package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"we_listings/api"
	"we_listings/cache"
	"we_listings/config"
	"we_listings/httputil"
	"we_listings/logging"
	"we_listings/models"
	"we_listings/scheduler"
	"we_listings/scraper"
	"we_listings/services"
	"we_listings/storage"
	"we_listings/workers"
)

var (
	scrapeOnce = flag.Bool("once", false, "Run one scrape cycle and exit")
	serveOnly  = flag.Bool("serve-only", false, "Serve the API without scheduler or workers")
	reset      = flag.Bool("reset", false, "Wipe cached snapshots, run history and commands, then exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting we_listings...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d region configs", len(cfg.Regions))
	for id, region := range cfg.Regions {
		log.Printf("  - %s (%s, %d cities)", region.Name, id, len(region.Cities))
	}

	clients := httputil.NewClients(cfg.ProxyURL)
	if cfg.ProxyURL != "" {
		log.Printf("Proxy: %s", cfg.ProxyURL)
	}

	ctx := context.Background()

	// SQLite holds the snapshot cache, run history and the command queue.
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *reset {
		if err := sqliteStore.ResetAllData(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Operational data wiped")
		return
	}

	// The Postgres archive is optional. Without it the daemon still scrapes
	// and serves, it just keeps no history.
	var pgStore *storage.PostgresStore
	if cfg.Postgres.URL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Printf("Warning: archive database unavailable: %v", err)
			pgStore = nil
		} else {
			defer pgStore.Close()
			log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.URL))
		}
	}

	uploader, err := storage.NewUploader(ctx, storage.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKey,
		SecretAccessKey: cfg.S3.SecretKey,
		PublicURL:       cfg.S3.PublicURL,
	})
	if err != nil {
		log.Printf("Warning: S3 uploader unavailable: %v", err)
		uploader = storage.NoOpUploader{}
	}

	// Services
	var archiveService *services.ArchiveService
	if pgStore != nil {
		matchService := services.NewMatchService(pgStore)
		archiveService = services.NewArchiveService(pgStore, matchService)
	}

	snapshotCache := cache.New(sqliteStore)
	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore)
	listingService := services.NewListingService(orchestrator, snapshotCache, archiveService)
	marketService := services.NewMarketService(clients.API)

	log.Println("Services initialized")

	sched := scheduler.New(cfg, listingService, orchestrator, sqliteStore)

	// Handle one-shot commands
	if *scrapeOnce {
		log.Println("Running scrape...")
		sched.RunAll(ctx)
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !*serveOnly {
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}

		if pgStore != nil {
			enrichmentWorker := workers.NewEnrichmentWorker(pgStore, clients.Scraping)
			go enrichmentWorker.Run(ctx, 10, 5*time.Minute) // batch of 10 every 5 min
			log.Println("Enrichment worker started")

			healthcheckWorker := workers.NewHealthcheckWorker(pgStore, clients.Scraping)
			healthcheckWorker.SetLogger(func(level models.LogLevel, source, message string) {
				_ = sqliteStore.Log(level, source, message)
			})
			sched.SetHealthcheck(healthcheckWorker)
			go healthcheckWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute) // listings unseen for 24h, batch 20, every 30 min
			log.Println("Healthcheck worker started")

			if uploader.Configured() {
				mediaWorker := workers.NewMediaWorker(pgStore, uploader)
				go mediaWorker.Run(ctx, 20, 2*time.Minute) // batch of 20 every 2 min
				log.Println("Media worker started")
			} else {
				log.Println("Media worker disabled: no S3 credentials")
			}
		} else {
			log.Println("Workers disabled: no archive database")
		}
	}

	router := api.NewRouter(cfg, listingService, marketService, orchestrator, pgStore)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("API listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	if !*serveOnly {
		sched.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	log.Println("Goodbye!")
}

// maskConnectionString hides the password portion of a database URL for logs.
func maskConnectionString(connStr string) string {
	schemeEnd := strings.Index(connStr, "://")
	if schemeEnd < 0 {
		return connStr
	}
	rest := connStr[schemeEnd+3:]
	at := strings.Index(rest, "@")
	if at < 0 {
		return connStr
	}
	colon := strings.Index(rest[:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:schemeEnd+3+colon+1] + "****" + rest[at:]
}
