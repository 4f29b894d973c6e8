package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"renew_scraper/config"
	"renew_scraper/logging"
	"renew_scraper/reports"
	"renew_scraper/scheduler"
	"renew_scraper/services"
	"renew_scraper/storage"
	"renew_scraper/web"
)

var (
	scrapeNow  = flag.Bool("scrape", false, "Run one scrape and exit")
	showStats  = flag.Bool("stats", false, "Print store statistics and exit")
	makeReport = flag.Bool("report", false, "Write the HTML report and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting renew_scraper...")

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	vehicles := services.NewVehicleService(store)

	// One-shot commands
	if *showStats {
		stats, err := vehicles.GetStatistics(ctx)
		if err != nil {
			log.Fatalf("Failed to get statistics: %v", err)
		}
		fmt.Printf("Total vehicles:     %d\n", stats.TotalVehicles)
		fmt.Printf("Available now:      %d\n", stats.AvailableVehicles)
		fmt.Printf("Sold:               %d\n", stats.SoldVehicles)
		fmt.Printf("New in 24h:         %d\n", stats.NewVehicles24h)
		fmt.Printf("With price history: %d\n", stats.WithPriceHistory)
		return
	}

	if *makeReport {
		withHistory, err := vehicles.GetVehiclesWithHistory(ctx)
		if err != nil {
			log.Fatalf("Failed to list vehicles: %v", err)
		}
		stats, err := vehicles.GetStatistics(ctx)
		if err != nil {
			log.Fatalf("Failed to get statistics: %v", err)
		}
		if err := reports.WriteHTML(cfg.ReportFile, withHistory, stats); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		log.Printf("Report written to %s", cfg.ReportFile)
		return
	}

	runner := scheduler.NewRunner(cfg, store)

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := runner.RunOnce(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode: scheduler + API server
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Scheduler, runner)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := web.NewServer(cfg.Server.Addr, store, runner)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}

	log.Println("Goodbye!")
}

// openStore picks the backend: Postgres when DATABASE_URL is set,
// SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.VehicleStore, error) {
	if cfg.DBURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DBURL))
		return store, nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
