package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"renew_scraper/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testVehicle(url string, price int) *models.Vehicle {
	return &models.Vehicle{
		Title:         "Renault Mégane E-Tech Iconic",
		Price:         price,
		Trim:          "Iconic",
		ChargeType:    "Optimum Charge",
		ExteriorColor: "Gris Schiste",
		SeatType:      "alcantara",
		Packs:         "Pack Augmented Vision",
		Location:      "Lyon Est",
		URL:           url,
	}
}

func TestReconcileVehicle_FirstSighting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	res, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/1", 22500), now)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !res.IsNew || res.PriceChanged {
		t.Fatalf("expected new without price change, got %+v", res)
	}

	rec, err := store.GetVehicle(ctx, "https://x/v/1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec == nil {
		t.Fatalf("vehicle not found")
	}
	if rec.OriginalPrice != 22500 || rec.Price != 22500 {
		t.Fatalf("expected prices 22500/22500, got %d/%d", rec.Price, rec.OriginalPrice)
	}
	if !rec.IsAvailable || rec.IsSold {
		t.Fatalf("expected available and not sold, got %+v", rec)
	}
	if !rec.IsNew {
		t.Fatalf("fresh record should report is_new")
	}

	history, err := store.GetPriceHistory(ctx, "https://x/v/1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].Price != 22500 {
		t.Fatalf("expected single 22500 entry, got %+v", history)
	}
}

func TestReconcileVehicle_RepeatSamePrice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := time.Now().Add(-48 * time.Hour)
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/1", 22500), first); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}

	second := time.Now()
	v := testVehicle("https://x/v/1", 22500)
	v.Location = "Bordeaux"
	res, err := store.ReconcileVehicle(ctx, v, second)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if res.IsNew || res.PriceChanged {
		t.Fatalf("repeat sighting must not be new or changed, got %+v", res)
	}

	rec, _ := store.GetVehicle(ctx, "https://x/v/1")
	if rec.Location != "Bordeaux" {
		t.Fatalf("mutable fields must be overwritten, got %q", rec.Location)
	}
	if !rec.LastSeen.After(rec.FirstSeen) {
		t.Fatalf("last_seen must advance: first=%v last=%v", rec.FirstSeen, rec.LastSeen)
	}
	if rec.IsNew {
		t.Fatalf("48h-old record must not report is_new")
	}

	history, _ := store.GetPriceHistory(ctx, "https://x/v/1")
	if len(history) != 1 {
		t.Fatalf("unchanged price must not append history, got %d entries", len(history))
	}
}

func TestReconcileVehicle_PriceChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t0 := time.Now().Add(-2 * time.Hour)
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/1", 23000), t0); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}

	res, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/1", 21990), time.Now())
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if res.IsNew || !res.PriceChanged {
		t.Fatalf("expected price change, got %+v", res)
	}

	rec, _ := store.GetVehicle(ctx, "https://x/v/1")
	if rec.Price != 21990 {
		t.Fatalf("expected current price 21990, got %d", rec.Price)
	}
	if rec.OriginalPrice != 23000 {
		t.Fatalf("original_price must never change, got %d", rec.OriginalPrice)
	}

	history, _ := store.GetPriceHistory(ctx, "https://x/v/1")
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Price != 23000 || history[1].Price != 21990 {
		t.Fatalf("history must be ordered by scrape time: %+v", history)
	}
}

func TestMarkUnavailableExcept(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, url := range []string{"https://x/v/1", "https://x/v/2", "https://x/v/3"} {
		if _, err := store.ReconcileVehicle(ctx, testVehicle(url, 22000), now); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	n, err := store.MarkUnavailableExcept(ctx, []string{"https://x/v/1", "https://x/v/3"})
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row swept, got %d", n)
	}

	// Idempotent: same observed set again is a no-op.
	n, err = store.MarkUnavailableExcept(ctx, []string{"https://x/v/1", "https://x/v/3"})
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep must be a no-op, swept %d", n)
	}

	rec, _ := store.GetVehicle(ctx, "https://x/v/2")
	if rec.IsAvailable {
		t.Fatalf("unobserved vehicle must be unavailable")
	}
	if rec.IsNew {
		t.Fatalf("unavailable vehicle must not be new")
	}
	rec, _ = store.GetVehicle(ctx, "https://x/v/1")
	if !rec.IsAvailable {
		t.Fatalf("observed vehicle must stay available")
	}
}

func TestMarkUnavailableExcept_EmptySetMarksAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, url := range []string{"https://x/v/1", "https://x/v/2"} {
		if _, err := store.ReconcileVehicle(ctx, testVehicle(url, 22000), now); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	n, err := store.MarkUnavailableExcept(ctx, nil)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("empty observed set must mark everything, swept %d", n)
	}
}

func TestListVehicles_Order(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t0 := time.Now().Add(-time.Hour)
	t1 := time.Now()
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/old", 20000), t0); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/cheap", 19000), t1); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/dear", 25000), t1); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	list, err := store.ListVehicles(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 vehicles, got %d", len(list))
	}
	if list[0].URL != "https://x/v/cheap" || list[1].URL != "https://x/v/dear" {
		t.Fatalf("expected last_seen desc then price asc, got %s, %s", list[0].URL, list[1].URL)
	}
	if list[2].URL != "https://x/v/old" {
		t.Fatalf("expected oldest last, got %s", list[2].URL)
	}
}

func TestGetStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/old", 22000), old); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := store.ReconcileVehicle(ctx, testVehicle("https://x/v/new", 21000), time.Now()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalVehicles != 2 {
		t.Fatalf("expected 2 total, got %d", stats.TotalVehicles)
	}
	if stats.AvailableVehicles != 2 {
		t.Fatalf("expected 2 available, got %d", stats.AvailableVehicles)
	}
	if stats.NewVehicles24h != 1 {
		t.Fatalf("expected 1 new in 24h, got %d", stats.NewVehicles24h)
	}
	if stats.SoldVehicles != 0 {
		t.Fatalf("pipeline never sets is_sold, got %d", stats.SoldVehicles)
	}
	if stats.WithPriceHistory != 2 {
		t.Fatalf("expected 2 tracked, got %d", stats.WithPriceHistory)
	}
}

func TestRunsAndLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.ScrapeRun{
		Token:     "test-token",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run failed: %v", err)
	}
	if run.ID == 0 {
		t.Fatalf("expected run ID assigned")
	}

	if err := store.Log(ctx, &run.ID, models.LogLevelInfo, "started"); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	run.PagesProcessed = 2
	run.AdsProcessed = 5
	run.AdsAdded = 1
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update run failed: %v", err)
	}
}
