package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
	"renew_scraper/config"
	"renew_scraper/httputil"
)

// Fetcher issues rate-limited GETs against the marketplace and returns
// parsed documents. One request in flight at a time, with a mandatory
// delay before each, to stay under the site's anti-bot radar.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	referer   string
}

func NewFetcher(cfg config.ScraperConfig, baseURL string) *Fetcher {
	return &Fetcher{
		client:    httputil.NewScrapingClient(cfg.Timeout()),
		limiter:   rate.NewLimiter(rate.Every(cfg.Delay()), 1),
		userAgent: cfg.UserAgent,
		referer:   baseURL + "/",
	}
}

// GetDocument fetches url and parses it. Any network or HTTP error is
// returned as-is; callers treat it as "no data" and move on.
func (f *Fetcher) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Referer", f.referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	return doc, nil
}
