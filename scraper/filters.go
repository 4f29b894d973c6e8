package scraper

import "strings"

// Keyword gates encoding which configurations are worth tracking. All
// operate on lower-cased text; precision is traded for resilience to
// markup changes since the site has no structured data feed.

var chargeKeywords = []string{"optimum charge", "ac22", "22kw", "22 kw"}

// Substring-matched exclusions. "noir" is matched exactly so metallic
// variants like "noir étoilé" stay in.
var excludedColors = []string{"rouge", "flamme"}

// CheckChargeType passes when the page mentions the tracked charging
// hardware in any of its spellings.
func CheckChargeType(fullText string) bool {
	for _, k := range chargeKeywords {
		if strings.Contains(fullText, k) {
			return true
		}
	}
	return false
}

// CheckF1Blade rejects only the bare F1-blade trim on one of the two
// excluded finishes; the "ton caisse" (body-colored) option mitigates.
func CheckF1Blade(fullText string) bool {
	if !strings.Contains(fullText, "lame f1") {
		return true
	}
	if strings.Contains(fullText, "ton caisse") {
		return true
	}
	if strings.Contains(fullText, "gris schiste") || strings.Contains(fullText, "gris rafale") {
		return false
	}
	return true
}

// CheckColor rejects unwanted exterior colors.
func CheckColor(color string) bool {
	lower := strings.ToLower(strings.TrimSpace(color))
	for _, excluded := range excludedColors {
		if strings.Contains(lower, excluded) {
			return false
		}
	}
	return lower != "noir"
}

// CheckPrice bounds the asking price to the tracked range.
func CheckPrice(price, min, max int) bool {
	return price >= min && price <= max
}
