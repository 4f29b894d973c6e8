package reports

import (
	"encoding/csv"
	"os"
	"strconv"

	"renew_scraper/models"
)

var csvHeader = []string{
	"price", "trim", "charge_type", "exterior_color", "seat_type",
	"packs", "location", "url", "photo_url", "latitude", "longitude",
}

// WriteCSV dumps the current crawl's vehicles to path. The title
// column is deliberately omitted; it is the same model name on every
// row.
func WriteCSV(path string, vehicles []models.Vehicle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, v := range vehicles {
		row := []string{
			strconv.Itoa(v.Price),
			v.Trim,
			v.ChargeType,
			v.ExteriorColor,
			v.SeatType,
			v.Packs,
			v.Location,
			v.URL,
			v.PhotoURL,
			formatCoord(v.Latitude),
			formatCoord(v.Longitude),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
