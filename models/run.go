package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is one execution of the full crawl pipeline.
type ScrapeRun struct {
	ID             int64      `json:"id" db:"id"`
	Token          string     `json:"token" db:"token"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	PagesProcessed int        `json:"pages_processed" db:"pages_processed"`
	AdsProcessed   int        `json:"ads_processed" db:"ads_processed"`
	AdsAdded       int        `json:"ads_added" db:"ads_added"`
	PriceChanges   int        `json:"price_changes" db:"price_changes"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
	ErrorMessage   string     `json:"error_message" db:"error_message"`
}

// Progress is the counter snapshot pushed to the progress sink after
// every meaningful state change during a run.
type Progress struct {
	PagesProcessed int `json:"pages_processed"`
	AdsProcessed   int `json:"ads_processed"`
	AdsAdded       int `json:"ads_added"`
}
