package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"renew_scraper/config"
	"renew_scraper/models"
	"renew_scraper/reports"
	"renew_scraper/scraper"
	"renew_scraper/storage"
)

// ErrBusy is returned when a crawl trigger arrives while one is
// already running. Triggers are rejected, never queued.
var ErrBusy = errors.New("scrape already running")

// Status is the read-only view of the runner exposed to the API.
type Status struct {
	Running        bool            `json:"running"`
	Progress       models.Progress `json:"progress"`
	LastError      string          `json:"last_error,omitempty"`
	LastFinishedAt *time.Time      `json:"last_finished_at,omitempty"`
}

// Runner owns the single-flight guard around the crawl pipeline: at
// most one crawl at a time, with the idle→running transition done as
// an atomic compare-and-set so concurrent triggers race cleanly.
type Runner struct {
	cfg     *config.Config
	store   storage.VehicleStore
	running atomic.Bool

	mu           sync.Mutex
	progress     models.Progress
	lastError    string
	lastFinished *time.Time
}

func NewRunner(cfg *config.Config, store storage.VehicleStore) *Runner {
	return &Runner{cfg: cfg, store: store}
}

// Trigger starts a crawl in the background. Returns ErrBusy without
// side effects if one is already in flight.
func (r *Runner) Trigger(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}

	go func() {
		defer r.running.Store(false)
		r.run(ctx)
	}()

	return nil
}

// RunOnce executes a crawl synchronously, for one-shot CLI use. The
// same busy guard applies.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.running.Store(false)
	return r.run(ctx)
}

func (r *Runner) run(ctx context.Context) error {
	r.mu.Lock()
	r.progress = models.Progress{}
	r.lastError = ""
	r.mu.Unlock()

	s := scraper.New(r.cfg, r.store, r.onProgress)
	_, vehicles, err := s.Run(ctx)

	r.mu.Lock()
	now := time.Now()
	r.lastFinished = &now
	if err != nil {
		r.lastError = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		log.Printf("Scrape failed: %v", err)
		return err
	}

	if len(vehicles) > 0 && r.cfg.CSVFile != "" {
		if csvErr := reports.WriteCSV(r.cfg.CSVFile, vehicles); csvErr != nil {
			log.Printf("Warning: failed to write CSV: %v", csvErr)
		} else {
			log.Printf("CSV saved to %s", r.cfg.CSVFile)
		}
	}

	return nil
}

func (r *Runner) onProgress(p models.Progress) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Running:        r.running.Load(),
		Progress:       r.progress,
		LastError:      r.lastError,
		LastFinishedAt: r.lastFinished,
	}
}
