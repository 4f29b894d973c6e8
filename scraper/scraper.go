package scraper

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"renew_scraper/config"
	"renew_scraper/models"
	"renew_scraper/services"
	"renew_scraper/storage"
)

// ProgressFunc receives a counter snapshot after every meaningful
// state change during a run.
type ProgressFunc func(models.Progress)

// Scraper drives the full crawl: search pages 1..N, candidate
// enumeration, per-candidate filtering and extraction, and store
// reconciliation. Strictly sequential, one request in flight at a
// time.
type Scraper struct {
	cfg       *config.Config
	fetcher   *Fetcher
	extractor *Extractor
	vehicles  *services.VehicleService
	store     storage.VehicleStore
	progress  ProgressFunc
}

func New(cfg *config.Config, store storage.VehicleStore, progress ProgressFunc) *Scraper {
	return &Scraper{
		cfg:       cfg,
		fetcher:   NewFetcher(cfg.Scraper, cfg.Search.BaseURL),
		extractor: NewExtractor(cfg.Search.BaseURL, cfg.Search.Bounds),
		vehicles:  services.NewVehicleService(store),
		store:     store,
		progress:  progress,
	}
}

// Run executes one complete crawl and returns its stats plus the
// vehicles that passed all gates. A panic anywhere in the pipeline is
// recorded on the run and returned as an error; the process stays
// alive for the next trigger.
func (s *Scraper) Run(ctx context.Context) (stats *services.ProcessStats, vehicles []models.Vehicle, err error) {
	stats = &services.ProcessStats{}

	run := &models.ScrapeRun{
		Token:     uuid.NewString(),
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if createErr := s.store.CreateRun(ctx, run); createErr != nil {
		log.Printf("Warning: failed to create run record: %v", createErr)
	}
	runID := &run.ID

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scrape panicked: %v", r)
		}
		now := time.Now()
		run.FinishedAt = &now
		run.Status = models.RunStatusCompleted
		if err != nil {
			run.Status = models.RunStatusFailed
			run.ErrorMessage = err.Error()
		}
		run.PagesProcessed = stats.PagesProcessed
		run.AdsProcessed = stats.AdsProcessed
		run.AdsAdded = stats.AdsAdded
		run.PriceChanges = stats.PriceChanges
		run.ErrorsCount = stats.Errors
		if updateErr := s.store.UpdateRun(ctx, run); updateErr != nil {
			log.Printf("Warning: failed to update run record: %v", updateErr)
		}
	}()

	log.Printf("Starting scrape: %s + %s", s.cfg.Search.Trim, s.cfg.Search.ChargeType)
	s.report(stats)

	var observed []string

	for page := 1; page <= s.cfg.Search.MaxPages; page++ {
		select {
		case <-ctx.Done():
			return stats, vehicles, ctx.Err()
		default:
		}

		pageURL := s.pageURL(page)
		log.Printf("Page %d: %s", page, pageURL)

		doc, fetchErr := s.fetcher.GetDocument(ctx, pageURL)
		if fetchErr != nil {
			log.Printf("Warning: failed to fetch page %d: %v", page, fetchErr)
			stats.Errors++
			break
		}

		stats.PagesProcessed = page
		s.report(stats)

		enum := Enumerate(doc, s.cfg.Search.BaseURL)
		if enum.EndOfResults {
			log.Printf("Page %d reports zero results, end of search", page)
			break
		}
		if enum.Anomaly {
			log.Printf("Warning: no listings on page %d and no zero-results phrasing, dumping page", page)
			s.dumpPage(doc)
			if logErr := s.store.Log(ctx, runID, models.LogLevelWarn,
				fmt.Sprintf("Anomaly on page %d, debug dump written", page)); logErr != nil {
				log.Printf("Warning: failed to log anomaly: %v", logErr)
			}
			break
		}
		if len(enum.URLs) == 0 {
			log.Printf("Page %d: listings found but all filtered, trying next page", page)
			continue
		}

		log.Printf("Page %d: %d candidates", page, len(enum.URLs))

		for _, candidate := range enum.URLs {
			stats.AdsProcessed++
			s.report(stats)

			vehicle, parseErr := s.parseDetailPage(ctx, candidate)
			if parseErr != nil {
				log.Printf("Warning: failed to fetch %s: %v", candidate, parseErr)
				stats.Errors++
				continue
			}
			if vehicle == nil {
				stats.Filtered++
				continue
			}

			vehicles = append(vehicles, *vehicle)

			result, procErr := s.vehicles.ProcessVehicle(ctx, vehicle, runID)
			if procErr != nil {
				log.Printf("Warning: failed to store %s: %v", vehicle.URL, procErr)
				stats.Errors++
				continue
			}
			observed = append(observed, vehicle.URL)

			stats.Aggregate(result)
			if result.IsNew {
				s.report(stats)
			}

			log.Printf("Match: %d EUR | %s | %s", vehicle.Price, vehicle.ExteriorColor, vehicle.Location)
		}
	}

	if _, sweepErr := s.vehicles.SweepUnavailable(ctx, observed, runID); sweepErr != nil {
		log.Printf("Warning: availability sweep failed: %v", sweepErr)
		stats.Errors++
	}

	log.Printf("Scrape done: %d pages, %d ads, %d new, %d price changes, %d errors",
		stats.PagesProcessed, stats.AdsProcessed, stats.AdsAdded, stats.PriceChanges, stats.Errors)
	if logErr := s.store.Log(ctx, runID, models.LogLevelInfo, string(stats.ToJSON())); logErr != nil {
		log.Printf("Warning: failed to log run summary: %v", logErr)
	}

	return stats, vehicles, nil
}

// parseDetailPage fetches one candidate and runs it through the gate
// chain. Returns (nil, nil) when a gate rejects it, an error only on
// fetch failure.
func (s *Scraper) parseDetailPage(ctx context.Context, url string) (*models.Vehicle, error) {
	doc, err := s.fetcher.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	fullText := strings.ToLower(FullText(doc))

	if !CheckChargeType(fullText) {
		return nil, nil
	}
	if !CheckF1Blade(fullText) {
		return nil, nil
	}

	color := s.extractor.Color(doc)
	if !CheckColor(color) {
		return nil, nil
	}

	// The search URL already constrains price server-side; the gate
	// only applies when extraction actually found a figure.
	price := s.extractor.Price(doc)
	if price > 0 && s.cfg.Search.PriceMax > 0 && !CheckPrice(price, s.cfg.Search.PriceMin, s.cfg.Search.PriceMax) {
		return nil, nil
	}

	lat, lng := s.extractor.Coordinates(doc)

	return &models.Vehicle{
		Title:         s.extractor.Title(doc),
		Price:         price,
		Trim:          s.cfg.Search.Trim,
		ChargeType:    s.cfg.Search.ChargeType,
		ExteriorColor: titleCase(color),
		SeatType:      s.extractor.SeatType(fullText),
		Packs:         s.extractor.Packs(doc),
		Location:      s.extractor.Location(doc),
		URL:           url,
		PhotoURL:      s.extractor.PhotoURL(doc),
		Latitude:      lat,
		Longitude:     lng,
	}, nil
}

func (s *Scraper) pageURL(page int) string {
	separator := "?"
	if strings.Contains(s.cfg.Search.SearchURL, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%spage=%d", s.cfg.Search.SearchURL, separator, page)
}

func (s *Scraper) dumpPage(doc *goquery.Document) {
	raw, err := doc.Html()
	if err != nil {
		log.Printf("Warning: failed to render debug dump: %v", err)
		return
	}
	if err := os.WriteFile(s.cfg.DebugDumpPath, []byte(raw), 0644); err != nil {
		log.Printf("Warning: failed to write debug dump: %v", err)
	}
}

func (s *Scraper) report(stats *services.ProcessStats) {
	if s.progress == nil {
		return
	}
	s.progress(models.Progress{
		PagesProcessed: stats.PagesProcessed,
		AdsProcessed:   stats.AdsProcessed,
		AdsAdded:       stats.AdsAdded,
	})
}
