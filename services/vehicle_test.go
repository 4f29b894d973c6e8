package services

import (
	"context"
	"path/filepath"
	"testing"

	"renew_scraper/models"
	"renew_scraper/storage"
)

func newTestService(t *testing.T) (*VehicleService, storage.VehicleStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewVehicleService(store), store
}

func TestProcessVehicle_CanonicalizesURL(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	v := &models.Vehicle{
		Title: "Mégane Iconic",
		Price: 22500,
		URL:   "https://FR.RENEW.AUTO/detail/abc.html?utm_source=mail#photos",
	}

	res, err := svc.ProcessVehicle(ctx, v, nil)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !res.IsNew {
		t.Fatalf("expected new vehicle")
	}
	if res.URL != "https://fr.renew.auto/detail/abc.html" {
		t.Fatalf("expected canonical URL, got %s", res.URL)
	}

	rec, err := store.GetVehicle(ctx, "https://fr.renew.auto/detail/abc.html")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec == nil {
		t.Fatalf("vehicle not stored under canonical key")
	}

	// The same listing seen through a tracking link is the same record.
	again := &models.Vehicle{
		Title: "Mégane Iconic",
		Price: 22500,
		URL:   "https://fr.renew.auto/detail/abc.html?utm_campaign=retarget",
	}
	res, err = svc.ProcessVehicle(ctx, again, nil)
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if res.IsNew {
		t.Fatalf("tracking-link variant must not create a second record")
	}
}

func TestProcessVehicle_RejectsEmptyURL(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ProcessVehicle(context.Background(), &models.Vehicle{Title: "x"}, nil)
	if err == nil {
		t.Fatalf("expected error for vehicle without URL")
	}
}

func TestSweepUnavailable_CanonicalizesObserved(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed := &models.Vehicle{Title: "x", Price: 20000, URL: "https://fr.renew.auto/detail/abc.html"}
	if _, err := svc.ProcessVehicle(ctx, seed, nil); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	n, err := svc.SweepUnavailable(ctx, []string{"https://FR.RENEW.AUTO/detail/abc.html#top"}, nil)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("observed vehicle must survive the sweep, swept %d", n)
	}

	rec, _ := store.GetVehicle(ctx, "https://fr.renew.auto/detail/abc.html")
	if rec == nil || !rec.IsAvailable {
		t.Fatalf("expected vehicle still available, got %+v", rec)
	}
}

func TestProcessStats_Aggregate(t *testing.T) {
	var stats ProcessStats

	stats.Aggregate(&ProcessResult{IsNew: true})
	stats.Aggregate(&ProcessResult{PriceChanged: true})
	stats.Aggregate(&ProcessResult{})

	if stats.AdsProcessed != 0 {
		t.Fatalf("Aggregate must not bump AdsProcessed, got %d", stats.AdsProcessed)
	}
	if stats.AdsAdded != 1 {
		t.Fatalf("expected 1 added, got %d", stats.AdsAdded)
	}
	if stats.PriceChanges != 1 {
		t.Fatalf("expected 1 price change, got %d", stats.PriceChanges)
	}
}
