package scraper

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"renew_scraper/config"
)

// Extractor pulls structured fields out of a detail-page document. Each
// field is best-effort with an ordered fallback chain; a miss resolves
// to the field's documented default, never an error.
type Extractor struct {
	base   *url.URL
	bounds config.Bounds
}

func NewExtractor(baseURL string, bounds config.Bounds) *Extractor {
	base, _ := url.Parse(baseURL)
	return &Extractor{base: base, bounds: bounds}
}

var (
	renaultPrefix  = regexp.MustCompile(`(?i)^renault\s+`)
	soldByPattern  = regexp.MustCompile(`(?i)vendu par\s*:\s*(.*?)(?:\d{5}|-)`)
	pricePattern   = regexp.MustCompile(`^\s*\d{2}[\s.]?\d{3}\s*€`)
	nonDigits      = regexp.MustCompile(`[^\d]`)
	photoClassPat  = regexp.MustCompile(`(?i)(product|vehicle|main|hero)`)
	coordsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/maps/dir//([-+]?\d+\.\d+),([-+]?\d+\.\d+)`),
		regexp.MustCompile(`@([-+]?\d+\.\d+),([-+]?\d+\.\d+)`),
		regexp.MustCompile(`q=([-+]?\d+\.\d+),([-+]?\d+\.\d+)`),
		regexp.MustCompile(`([-+]?\d+\.\d+),([-+]?\d+\.\d+)`),
	}
)

var packKeywords = []string{"pack", "vision", "driving", "augment", "harman"}

var photoAltKeywords = []string{"megane", "véhicule", "vehicle", "voiture"}

// Location finds the selling dealer: dealer-info anchor first, then a
// "Vendu par:" scan of the page text, else "Unknown Location".
func (e *Extractor) Location(doc *goquery.Document) string {
	var loc string
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if !strings.Contains(strings.ToLower(class), "dealerinfos") {
			return true
		}
		text := renaultPrefix.ReplaceAllString(strings.TrimSpace(s.Text()), "")
		loc = titleCase(strings.TrimSpace(text))
		return false
	})
	if loc != "" {
		return loc
	}

	if m := soldByPattern.FindStringSubmatch(FullText(doc)); m != nil {
		name := strings.TrimSpace(m[1])
		if r := []rune(name); len(r) > 30 {
			name = string(r[:30])
		}
		name = strings.ReplaceAll(name, "RENAULT ", "")
		return titleCase(strings.TrimSpace(name))
	}

	return "Unknown Location"
}

// Packs collects option-pack labels: every short "options" text node
// anchors a search for the next list, whose items are kept when they
// mention a known pack keyword. Deduped, sorted, comma-joined.
func (e *Extractor) Packs(doc *goquery.Document) string {
	seen := make(map[string]bool)
	var found []string

	walkText(doc.Get(0), func(n *html.Node) bool {
		text := n.Data
		if len(text) > 50 || !strings.Contains(strings.ToLower(text), "options") {
			return true
		}
		parent := n.Parent
		if parent == nil {
			return true
		}

		container := parent
		for a := parent.Parent; a != nil; a = a.Parent {
			if a.Type == html.ElementNode && a.Data == "div" {
				container = a
				break
			}
		}

		ul := nextElement(container, "ul")
		if ul == nil {
			return true
		}

		walkElements(ul, "li", func(li *html.Node) {
			item := nodeText(li)
			lower := strings.ToLower(item)
			for _, k := range packKeywords {
				if strings.Contains(lower, k) {
					if !seen[item] {
						seen[item] = true
						found = append(found, item)
					}
					break
				}
			}
		})
		return true
	})

	if len(found) == 0 {
		return "None"
	}
	sort.Strings(found)
	return strings.Join(found, ", ")
}

// Color scans list items for a "couleur" line, preferring a bolded
// child over the text after the last colon. Lower-cased; "inconnu"
// when nothing matches.
func (e *Extractor) Color(doc *goquery.Document) string {
	color := "inconnu"
	doc.Find("li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(collapse(s.Text()))
		if !strings.Contains(text, "couleur") {
			return true
		}
		if strong := s.Find("strong").First(); strong.Length() > 0 {
			color = strings.ToLower(collapse(strong.Text()))
			return false
		}
		if i := strings.LastIndex(text, ":"); i >= 0 {
			color = strings.TrimSpace(text[i+1:])
			return false
		}
		return true
	})
	return color
}

// Price finds the first text node shaped like a French five-digit price
// ("22 500 €", "22.500€") and strips it to an integer. 0 when absent.
func (e *Extractor) Price(doc *goquery.Document) int {
	price := 0
	walkText(doc.Get(0), func(n *html.Node) bool {
		if !pricePattern.MatchString(n.Data) {
			return true
		}
		price, _ = strconv.Atoi(nonDigits.ReplaceAllString(n.Data, ""))
		return false
	})
	return price
}

// PhotoURL resolves the main vehicle photo through a four-tier
// fallback: class hint, picture element, alt-text keyword, then the
// first plausibly-large non-logo image. Empty when nothing qualifies.
func (e *Extractor) PhotoURL(doc *goquery.Document) string {
	var photo string

	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		src, _ := s.Attr("src")
		if src != "" && photoClassPat.MatchString(class) {
			photo = e.resolve(src)
			return false
		}
		return true
	})
	if photo != "" {
		return photo
	}

	if src, ok := doc.Find("picture img").First().Attr("src"); ok && src != "" {
		return e.resolve(src)
	}

	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		alt, _ := s.Attr("alt")
		src, _ := s.Attr("src")
		if src == "" {
			return true
		}
		lower := strings.ToLower(alt)
		for _, k := range photoAltKeywords {
			if strings.Contains(lower, k) {
				photo = e.resolve(src)
				return false
			}
		}
		return true
	})
	if photo != "" {
		return photo
	}

	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if src == "" {
			return true
		}
		lower := strings.ToLower(src)
		if strings.Contains(lower, "logo") || strings.Contains(lower, "icon") {
			return true
		}
		width, hasWidth := s.Attr("width")
		if hasWidth {
			if w, err := strconv.Atoi(width); err == nil && w > 200 {
				photo = e.resolve(src)
				return false
			}
			return true
		}
		photo = e.resolve(src)
		return false
	})

	return photo
}

// Coordinates extracts dealer GPS coordinates from a maps link,
// trying several href shapes and accepting only pairs inside the
// configured bounding box. (nil, nil) when nothing validates.
func (e *Extractor) Coordinates(doc *goquery.Document) (*float64, *float64) {
	var lat, lng *float64

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		lowerHref := strings.ToLower(href)
		text := strings.ToLower(collapse(s.Text()))

		isMaps := strings.Contains(lowerHref, "google.com/maps") ||
			(strings.Contains(lowerHref, "maps") &&
				(strings.Contains(text, "itinéraire") || strings.Contains(text, "direction")))
		if !isMaps {
			return true
		}

		for _, pat := range coordsPatterns {
			m := pat.FindStringSubmatch(href)
			if m == nil {
				continue
			}
			la, err1 := strconv.ParseFloat(m[1], 64)
			lo, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			if la < e.bounds.LatMin || la > e.bounds.LatMax ||
				lo < e.bounds.LngMin || lo > e.bounds.LngMax {
				continue
			}
			lat, lng = &la, &lo
			return false
		}
		return true
	})

	return lat, lng
}

// SeatType classifies the upholstery from the lower-cased page text.
func (e *Extractor) SeatType(fullText string) string {
	switch {
	case strings.Contains(fullText, "alcantara") || strings.Contains(fullText, "tissu"):
		return "alcantara"
	case strings.Contains(fullText, "sellerie cuir riviera gris"):
		return "cuir blanc"
	default:
		return "unsure"
	}
}

// Title takes the first heading, falling back to the page title.
func (e *Extractor) Title(doc *goquery.Document) string {
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if t := collapse(h1.Text()); t != "" {
			return t
		}
	}
	if title := doc.Find("title").First(); title.Length() > 0 {
		if t := collapse(title.Text()); t != "" {
			return t
		}
	}
	return "Unknown Vehicle"
}

func (e *Extractor) resolve(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if e.base == nil {
		return u.String()
	}
	return e.base.ResolveReference(u).String()
}

// FullText flattens the document to a single space-separated string,
// the shape the keyword filters and text-scan extractors work on.
func FullText(doc *goquery.Document) string {
	var parts []string
	walkText(doc.Get(0), func(n *html.Node) bool {
		parts = append(parts, strings.Fields(n.Data)...)
		return true
	})
	return strings.Join(parts, " ")
}

func titleCase(s string) string {
	return cases.Title(language.French).String(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// walkText visits every text node in document order. fn returns false
// to stop the walk.
func walkText(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	stop := false
	var visit func(*html.Node)
	visit = func(cur *html.Node) {
		if stop || cur == nil {
			return
		}
		if cur.Type == html.ElementNode && (cur.Data == "script" || cur.Data == "style") {
			return
		}
		if cur.Type == html.TextNode {
			if !fn(cur) {
				stop = true
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
}

// walkElements visits every element named tag in n's subtree.
func walkElements(n *html.Node, tag string, fn func(*html.Node)) {
	var visit func(*html.Node)
	visit = func(cur *html.Node) {
		if cur == nil {
			return
		}
		if cur.Type == html.ElementNode && cur.Data == tag {
			fn(cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
}

// nextElement finds the next element named tag in document order,
// starting inside n's subtree and continuing past it.
func nextElement(n *html.Node, tag string) *html.Node {
	for cur := nextNode(n); cur != nil; cur = nextNode(cur) {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

func nextNode(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for n != nil {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
	}
	return nil
}

func nodeText(n *html.Node) string {
	var parts []string
	walkText(n, func(t *html.Node) bool {
		parts = append(parts, strings.Fields(t.Data)...)
		return true
	})
	return strings.Join(parts, " ")
}
