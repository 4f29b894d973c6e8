package reports

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"renew_scraper/models"
)

// WriteHTML renders the vehicle report to path.
func WriteHTML(path string, vehicles []models.VehicleWithHistory, stats *models.Statistics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return RenderHTML(f, vehicles, stats, time.Now())
}

// RenderHTML writes the report for the given snapshot time. Vehicles
// are expected in store order (last_seen descending, price ascending).
func RenderHTML(w io.Writer, vehicles []models.VehicleWithHistory, stats *models.Statistics, now time.Time) error {
	view := reportView{
		Generated: now.Format("2006-01-02 15:04:05"),
		Stats:     stats,
	}
	for _, v := range vehicles {
		view.Vehicles = append(view.Vehicles, newVehicleView(v, now))
	}
	return reportTemplate.Execute(w, view)
}

type reportView struct {
	Generated string
	Stats     *models.Statistics
	Vehicles  []vehicleView
}

type vehicleView struct {
	models.VehicleWithHistory
	PriceDelta   int
	FirstSeenRel string
	FirstSeenAbs string
	LastSeenRel  string
	LastSeenAbs  string
	ColorHex     string
	History      []historyView
}

type historyView struct {
	Date  string
	Price string
	Arrow string
}

func newVehicleView(v models.VehicleWithHistory, now time.Time) vehicleView {
	view := vehicleView{
		VehicleWithHistory: v,
		PriceDelta:         v.Price - v.OriginalPrice,
		FirstSeenRel:       relativeTime(v.FirstSeen, now),
		FirstSeenAbs:       v.FirstSeen.Format("2006-01-02 15:04"),
		LastSeenRel:        relativeTime(v.LastSeen, now),
		LastSeenAbs:        v.LastSeen.Format("2006-01-02 15:04"),
		ColorHex:           colorHex(v.ExteriorColor),
	}
	if v.OriginalPrice == 0 {
		view.PriceDelta = 0
	}

	// A single entry is just the insert price, nothing to show.
	if len(v.PriceHistory) > 1 {
		for i, h := range v.PriceHistory {
			item := historyView{
				Date:  h.ScrapedAt.Format("01/02"),
				Price: formatEuros(h.Price),
			}
			if i > 0 {
				prev := v.PriceHistory[i-1].Price
				switch {
				case h.Price < prev:
					item.Arrow = "↓"
				case h.Price > prev:
					item.Arrow = "↑"
				default:
					item.Arrow = "="
				}
			}
			view.History = append(view.History, item)
		}
	}
	return view
}

func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d min ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", h)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case d < 30*24*time.Hour:
		weeks := int(d.Hours() / (7 * 24))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		months := int(d.Hours() / (30 * 24))
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}
}

func formatEuros(price int) string {
	s := fmt.Sprintf("%d", price)
	if len(s) > 3 {
		s = s[:len(s)-3] + " " + s[len(s)-3:]
	}
	return s + "€"
}

var knownColors = []struct {
	name string
	hex  string
}{
	{"blanc nacré", "#F5F5F5"},
	{"noir étoilé", "#0a0a0a"},
	{"gris schiste", "#6B7280"},
	{"gris rafale", "#5a5a5a"},
	{"bleu iron", "#1e3a5f"},
	{"rouge flamme", "#DC143C"},
	{"blanc", "#FFFFFF"},
	{"noir", "#1a1a1a"},
	{"gris", "#808080"},
	{"bleu", "#0066CC"},
	{"rouge", "#CC0000"},
}

func colorHex(name string) string {
	lower := strings.ToLower(name)
	for _, c := range knownColors {
		if strings.Contains(lower, c.name) {
			return c.hex
		}
	}
	return "#6c757d"
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"euros": formatEuros,
}).Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Renault Mégane E-Tech - Vehicle Report</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background: #667eea; padding: 20px; color: #333; }
.container { max-width: 1600px; margin: 0 auto; background: white; border-radius: 10px; overflow: hidden; }
.header { background: #2c3e50; color: white; padding: 30px; text-align: center; }
.stats { display: flex; justify-content: space-around; padding: 20px; background: #f8f9fa; border-bottom: 2px solid #dee2e6; }
.stat-box { text-align: center; padding: 15px; }
.stat-box .number { font-size: 2em; font-weight: bold; color: #667eea; }
.stat-box .label { font-size: 0.9em; color: #6c757d; }
table { width: 100%; border-collapse: collapse; font-size: 0.9em; }
th { background: #2c3e50; color: white; padding: 12px 8px; text-align: left; }
td { padding: 10px 8px; border-bottom: 1px solid #dee2e6; }
tr.new-row { background-color: #d4edda; }
.photo-cell img { max-width: 150px; max-height: 100px; object-fit: cover; border-radius: 5px; }
.no-photo { width: 150px; height: 100px; background: #f8f9fa; display: flex; align-items: center; justify-content: center; color: #999; }
.badge { display: inline-block; padding: 3px 8px; border-radius: 3px; font-size: 0.75em; font-weight: bold; margin-left: 5px; color: white; }
.badge-new, .badge-down { background: #28a745; }
.badge-up { background: #dc3545; }
.color-badge { display: inline-block; padding: 4px 10px; border-radius: 12px; color: white; text-shadow: 0 1px 2px rgba(0,0,0,0.3); }
.relative-date { font-weight: 600; color: #667eea; }
.absolute-date { font-size: 0.8em; color: #6c757d; }
.price-history { font-size: 0.8em; color: #6c757d; }
.footer { text-align: center; padding: 20px; background: #f8f9fa; color: #6c757d; font-size: 0.9em; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Renault Mégane E-Tech</h1>
    <div>Iconic | Optimum Charge</div>
    <div>Generated: {{.Generated}}</div>
  </div>
  <div class="stats">
    <div class="stat-box"><div class="number">{{.Stats.TotalVehicles}}</div><div class="label">Total Vehicles</div></div>
    <div class="stat-box"><div class="number">{{.Stats.AvailableVehicles}}</div><div class="label">Available Now</div></div>
    <div class="stat-box"><div class="number">{{.Stats.NewVehicles24h}}</div><div class="label">New (24h)</div></div>
    <div class="stat-box"><div class="number">{{.Stats.WithPriceHistory}}</div><div class="label">Price Tracked</div></div>
  </div>
  <table>
    <thead>
      <tr>
        <th>Photo</th><th>Current Price</th><th>Original Price</th><th>Trim</th><th>Charge</th>
        <th>Color</th><th>Seats</th><th>Packs</th><th>Location</th>
        <th>First Seen</th><th>Last Seen</th><th>Price History</th>
      </tr>
    </thead>
    <tbody>
      {{range .Vehicles}}
      <tr{{if .IsNew}} class="new-row"{{end}}>
        <td class="photo-cell">
          <a href="{{.URL}}" target="_blank">
            {{if .PhotoURL}}<img src="{{.PhotoURL}}" alt="{{.Title}}">{{else}}<div class="no-photo">No Photo</div>{{end}}
          </a>
          {{if .IsNew}}<span class="badge badge-new">NEW</span>{{end}}
        </td>
        <td><strong>{{euros .Price}}</strong>
          {{if lt .PriceDelta 0}}<span class="badge badge-down">{{.PriceDelta}}€</span>{{end}}
          {{if gt .PriceDelta 0}}<span class="badge badge-up">+{{.PriceDelta}}€</span>{{end}}
        </td>
        <td>{{euros .OriginalPrice}}</td>
        <td>{{.Trim}}</td>
        <td>{{.ChargeType}}</td>
        <td><span class="color-badge" style="background-color: {{.ColorHex}};">{{.ExteriorColor}}</span></td>
        <td>{{.SeatType}}</td>
        <td>{{.Packs}}</td>
        <td>{{.Location}}</td>
        <td><span class="relative-date">{{.FirstSeenRel}}</span><br><span class="absolute-date">{{.FirstSeenAbs}}</span></td>
        <td><span class="relative-date">{{.LastSeenRel}}</span><br><span class="absolute-date">{{.LastSeenAbs}}</span></td>
        <td>
          {{if .History}}<div class="price-history">{{range .History}}<div>{{.Date}}: {{.Price}} {{.Arrow}}</div>{{end}}</div>{{else}}&mdash;{{end}}
        </td>
      </tr>
      {{end}}
    </tbody>
  </table>
  <div class="footer">Generated by renew_scraper</div>
</div>
</body>
</html>
`))
