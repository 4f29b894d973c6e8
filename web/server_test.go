package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"renew_scraper/config"
	"renew_scraper/models"
	"renew_scraper/scheduler"
	"renew_scraper/storage"
)

func newTestServer(t *testing.T) (*Server, storage.VehicleStore, *scheduler.Runner) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Search: config.SearchConfig{
			// Unroutable: refresh tests only exercise the busy guard.
			BaseURL:   "http://127.0.0.1:0",
			SearchURL: "http://127.0.0.1:0/search",
			MaxPages:  1,
		},
		Scraper: config.ScraperConfig{TimeoutSec: 1},
	}
	runner := scheduler.NewRunner(cfg, store)
	return NewServer(":0", store, runner), store, runner
}

func TestHandleStats(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	v := &models.Vehicle{Title: "Mégane", Price: 22500, URL: "https://x/v/1"}
	if _, err := store.ReconcileVehicle(ctx, v, time.Now()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats models.Statistics
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if stats.TotalVehicles != 1 || stats.AvailableVehicles != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestHandleVehicles(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	v := &models.Vehicle{Title: "Mégane", Price: 23000, URL: "https://x/v/1"}
	if _, err := store.ReconcileVehicle(ctx, v, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	v.Price = 21990
	if _, err := store.ReconcileVehicle(ctx, v, time.Now()); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Vehicles []models.VehicleWithHistory `json:"vehicles"`
		Count    int                         `json:"count"`
		Stats    models.Statistics           `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Count != 1 || len(body.Vehicles) != 1 {
		t.Fatalf("expected 1 vehicle, got %+v", body)
	}
	if len(body.Vehicles[0].PriceHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(body.Vehicles[0].PriceHistory))
	}
	if body.Vehicles[0].Price != 21990 || body.Vehicles[0].OriginalPrice != 23000 {
		t.Fatalf("unexpected prices %+v", body.Vehicles[0])
	}
}

func TestHandleRefresh_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/refresh", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleRefresh_BusyRejection(t *testing.T) {
	release := make(chan struct{})
	blocking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`<html><body><p>Aucun résultat.</p></body></html>`))
	}))
	defer blocking.Close()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Search: config.SearchConfig{
			BaseURL:   blocking.URL,
			SearchURL: blocking.URL + "/search",
			MaxPages:  1,
		},
		Scraper: config.ScraperConfig{TimeoutSec: 10},
	}
	runner := scheduler.NewRunner(cfg, store)
	srv := NewServer(":0", store, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	// The crawl is parked on the blocking fixture, so a second trigger
	// must be rejected, not queued.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "busy" {
		t.Fatalf("expected busy status, got %+v", body)
	}

	// Let the parked crawl finish before the store is torn down.
	close(release)
	for i := 0; i < 100 && runner.Status().Running; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if runner.Status().Running {
		t.Fatalf("crawl did not finish after release")
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status scheduler.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if status.Running {
		t.Fatalf("no crawl should be running")
	}
}
