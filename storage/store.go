package storage

import (
	"context"
	"time"

	"renew_scraper/models"
)

// ReconcileResult reports what a single vehicle write did.
type ReconcileResult struct {
	IsNew        bool
	PriceChanged bool
}

// VehicleStore is the persistence contract shared by the SQLite and
// Postgres backends. URL is the identity key throughout.
type VehicleStore interface {
	// ReconcileVehicle inserts or updates one vehicle inside a single
	// transaction: first sighting records original_price and the first
	// price-history entry; repeat sightings overwrite mutable fields,
	// advance last_seen, restore availability, and append a history
	// entry only when the price differs from the stored one.
	ReconcileVehicle(ctx context.Context, v *models.Vehicle, now time.Time) (ReconcileResult, error)

	// MarkUnavailableExcept flips is_available to false for every
	// stored vehicle whose URL is not in observed. An empty set marks
	// everything unavailable. Returns the number of rows changed.
	MarkUnavailableExcept(ctx context.Context, observed []string) (int64, error)

	GetVehicle(ctx context.Context, url string) (*models.VehicleRecord, error)
	ListVehicles(ctx context.Context) ([]models.VehicleRecord, error)
	GetPriceHistory(ctx context.Context, url string) ([]models.PriceHistoryEntry, error)
	GetStatistics(ctx context.Context) (*models.Statistics, error)

	CreateRun(ctx context.Context, run *models.ScrapeRun) error
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error
	Log(ctx context.Context, runID *int64, level models.LogLevel, message string) error

	Close() error
}
