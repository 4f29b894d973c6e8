package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"renew_scraper/identity"
	"renew_scraper/models"
	"renew_scraper/storage"
)

// VehicleService reconciles scraped vehicles into the store and keeps
// run-level bookkeeping.
type VehicleService struct {
	store storage.VehicleStore
}

// NewVehicleService creates a new VehicleService
func NewVehicleService(store storage.VehicleStore) *VehicleService {
	return &VehicleService{store: store}
}

// ProcessResult contains the outcome of processing one vehicle
type ProcessResult struct {
	URL          string
	IsNew        bool
	PriceChanged bool
}

// ProcessVehicle canonicalizes the listing URL and writes the vehicle
// through the store's reconcile path. Idempotent - a repeat sighting
// with the same price only advances last_seen.
func (s *VehicleService) ProcessVehicle(ctx context.Context, v *models.Vehicle, runID *int64) (*ProcessResult, error) {
	v.URL = identity.CanonicalURL(v.URL)
	if v.URL == "" {
		return nil, fmt.Errorf("vehicle has no URL")
	}

	now := time.Now()
	res, err := s.store.ReconcileVehicle(ctx, v, now)
	if err != nil {
		return nil, fmt.Errorf("reconcile vehicle: %w", err)
	}

	result := &ProcessResult{
		URL:          v.URL,
		IsNew:        res.IsNew,
		PriceChanged: res.PriceChanged,
	}

	if res.IsNew {
		if err := s.store.Log(ctx, runID, models.LogLevelInfo,
			fmt.Sprintf("New vehicle: %s at %d EUR", v.Title, v.Price)); err != nil {
			log.Printf("Warning: failed to log new vehicle: %v", err)
		}
	}
	if res.PriceChanged {
		if err := s.store.Log(ctx, runID, models.LogLevelInfo,
			fmt.Sprintf("Price change: %s now %d EUR", v.URL, v.Price)); err != nil {
			log.Printf("Warning: failed to log price change: %v", err)
		}
	}

	return result, nil
}

// SweepUnavailable marks every stored vehicle not observed in this
// crawl as unavailable. Passing an empty slice marks everything.
func (s *VehicleService) SweepUnavailable(ctx context.Context, observed []string, runID *int64) (int64, error) {
	canonical := make([]string, 0, len(observed))
	for _, u := range observed {
		canonical = append(canonical, identity.CanonicalURL(u))
	}

	n, err := s.store.MarkUnavailableExcept(ctx, canonical)
	if err != nil {
		return 0, fmt.Errorf("mark unavailable: %w", err)
	}

	if n > 0 {
		if err := s.store.Log(ctx, runID, models.LogLevelInfo,
			fmt.Sprintf("Marked %d vehicles unavailable", n)); err != nil {
			log.Printf("Warning: failed to log availability sweep: %v", err)
		}
	}

	return n, nil
}

// GetVehiclesWithHistory returns every stored vehicle with its full
// price history attached, in report order.
func (s *VehicleService) GetVehiclesWithHistory(ctx context.Context) ([]models.VehicleWithHistory, error) {
	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	result := make([]models.VehicleWithHistory, 0, len(vehicles))
	for _, v := range vehicles {
		history, err := s.store.GetPriceHistory(ctx, v.URL)
		if err != nil {
			return nil, fmt.Errorf("price history for %s: %w", v.URL, err)
		}
		result = append(result, models.VehicleWithHistory{
			VehicleRecord: v,
			PriceHistory:  history,
		})
	}
	return result, nil
}

// GetStatistics returns the aggregate counters for the fleet.
func (s *VehicleService) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	return s.store.GetStatistics(ctx)
}

// ProcessStats tracks aggregate statistics for a scrape run
type ProcessStats struct {
	PagesProcessed int
	AdsProcessed   int
	AdsAdded       int
	PriceChanges   int
	Filtered       int
	Errors         int
}

// Aggregate folds a ProcessResult into the stats. AdsProcessed is
// counted by the driver per candidate, filtered and failed ones
// included, so it is not bumped here.
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	if r.IsNew {
		s.AdsAdded++
	}
	if r.PriceChanged {
		s.PriceChanges++
	}
}

// ToJSON returns JSON-serializable metadata
func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"pages_processed": s.PagesProcessed,
		"ads_processed":   s.AdsProcessed,
		"ads_added":       s.AdsAdded,
		"price_changes":   s.PriceChanges,
		"filtered":        s.Filtered,
		"errors":          s.Errors,
	})
	return data
}
