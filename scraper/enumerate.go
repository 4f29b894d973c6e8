package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Anchor-text fragments identifying the unwanted trim variants that
// share the search results with the tracked one.
var skipKeywords = []string{"super charge", "standard charge"}

// Phrases the site uses on an empty results page ("aucun résultat",
// "0 résultats"), truncated before the accented part.
var endOfResultsPhrases = []string{"aucun r", "0 r"}

// EnumerateResult is the outcome of scanning one search results page.
type EnumerateResult struct {
	URLs         []string
	EndOfResults bool
	// Anomaly means the page had no detail links but also no zero-
	// results phrasing: likely a bot block or a markup change.
	Anomaly bool
}

// Enumerate extracts candidate detail-page URLs from a search results
// page: anchors whose href mentions "detail" or "product", minus the
// unwanted trim variants, resolved against baseURL and deduplicated.
func Enumerate(doc *goquery.Document, baseURL string) EnumerateResult {
	var result EnumerateResult

	base, _ := url.Parse(baseURL)

	seen := make(map[string]bool)
	found := 0

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lowerHref := strings.ToLower(href)
		if !strings.Contains(lowerHref, "detail") && !strings.Contains(lowerHref, "product") {
			return
		}
		found++

		text := strings.ToLower(collapse(s.Text()))
		for _, bad := range skipKeywords {
			if strings.Contains(text, bad) {
				return
			}
		}

		resolved := href
		if base != nil {
			if u, err := url.Parse(href); err == nil {
				resolved = base.ResolveReference(u).String()
			}
		}
		if !seen[resolved] {
			seen[resolved] = true
			result.URLs = append(result.URLs, resolved)
		}
	})

	if found == 0 {
		pageText := strings.ToLower(FullText(doc))
		for _, phrase := range endOfResultsPhrases {
			if strings.Contains(pageText, phrase) {
				result.EndOfResults = true
				return result
			}
		}
		result.Anomaly = true
	}

	return result
}
