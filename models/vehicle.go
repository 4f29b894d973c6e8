package models

import (
	"time"
)

// Vehicle is a single extracted listing, produced by the detail-page
// pipeline. Immutable once returned from extraction.
type Vehicle struct {
	Title         string   `json:"title"`
	Price         int      `json:"price"`
	Trim          string   `json:"trim"`
	ChargeType    string   `json:"charge_type"`
	ExteriorColor string   `json:"exterior_color"`
	SeatType      string   `json:"seat_type"`
	Packs         string   `json:"packs"`
	Location      string   `json:"location"`
	URL           string   `json:"url"`
	PhotoURL      string   `json:"photo_url,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

// VehicleRecord is the persisted form of a Vehicle. URL is the identity
// key; original_price and first_seen never change after insert.
type VehicleRecord struct {
	URL           string    `json:"url" db:"url"`
	Title         string    `json:"title" db:"title"`
	Price         int       `json:"price" db:"current_price"`
	OriginalPrice int       `json:"original_price" db:"original_price"`
	Trim          string    `json:"trim" db:"trim"`
	ChargeType    string    `json:"charge_type" db:"charge_type"`
	ExteriorColor string    `json:"exterior_color" db:"exterior_color"`
	SeatType      string    `json:"seat_type" db:"seat_type"`
	Packs         string    `json:"packs" db:"packs"`
	Location      string    `json:"location" db:"location"`
	PhotoURL      string    `json:"photo_url,omitempty" db:"photo_url"`
	Latitude      *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude     *float64  `json:"longitude,omitempty" db:"longitude"`
	FirstSeen     time.Time `json:"first_seen" db:"first_seen"`
	LastSeen      time.Time `json:"last_seen" db:"last_seen"`
	IsAvailable   bool      `json:"is_available" db:"is_available"`
	IsSold        bool      `json:"is_sold" db:"is_sold"`
	IsNew         bool      `json:"is_new"`
}

// NewWindow is how recently a vehicle must have first appeared to count
// as "new" in reports and statistics.
const NewWindow = 24 * time.Hour

// ComputeIsNew derives the is_new flag from first_seen and availability.
func (r *VehicleRecord) ComputeIsNew(now time.Time) bool {
	return r.IsAvailable && now.Sub(r.FirstSeen) < NewWindow
}

// PriceHistoryEntry is one append-only price observation for a vehicle.
type PriceHistoryEntry struct {
	ID         int64     `json:"id" db:"id"`
	VehicleURL string    `json:"vehicle_url" db:"vehicle_url"`
	Price      int       `json:"price" db:"price"`
	ScrapedAt  time.Time `json:"scraped_at" db:"scraped_at"`
}

// VehicleWithHistory pairs a stored vehicle with its full price
// history, the shape the API and reports consume.
type VehicleWithHistory struct {
	VehicleRecord
	PriceHistory []PriceHistoryEntry `json:"price_history"`
}

// Statistics are the count-based aggregates exposed by the stats API.
type Statistics struct {
	TotalVehicles     int `json:"total_vehicles"`
	AvailableVehicles int `json:"available_vehicles"`
	SoldVehicles      int `json:"sold_vehicles"`
	NewVehicles24h    int `json:"new_vehicles_24h"`
	WithPriceHistory  int `json:"vehicles_with_price_history"`
}
