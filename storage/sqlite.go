package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"renew_scraper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		current_price INTEGER NOT NULL,
		original_price INTEGER,
		trim TEXT,
		charge_type TEXT,
		exterior_color TEXT,
		seat_type TEXT,
		packs TEXT,
		location TEXT,
		photo_url TEXT,
		latitude REAL,
		longitude REAL,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT 1,
		is_sold BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_url TEXT NOT NULL,
		price INTEGER NOT NULL,
		scraped_at DATETIME NOT NULL,
		FOREIGN KEY (vehicle_url) REFERENCES vehicles(url)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		token TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_processed INTEGER,
		ads_processed INTEGER,
		ads_added INTEGER,
		price_changes INTEGER,
		errors_count INTEGER,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_url ON price_history(vehicle_url);
	CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(scraped_at);
	CREATE INDEX IF NOT EXISTS idx_vehicles_available ON vehicles(is_available);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ReconcileVehicle(ctx context.Context, v *models.Vehicle, now time.Time) (ReconcileResult, error) {
	var result ReconcileResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	var currentPrice int
	err = tx.QueryRowContext(ctx,
		`SELECT current_price FROM vehicles WHERE url = ?`, v.URL).Scan(&currentPrice)

	switch {
	case err == sql.ErrNoRows:
		result.IsNew = true
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vehicles (
				url, title, current_price, original_price, trim, charge_type,
				exterior_color, seat_type, packs, location, photo_url,
				latitude, longitude, first_seen, last_seen, is_available, is_sold
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0)`,
			v.URL, v.Title, v.Price, v.Price, v.Trim, v.ChargeType,
			v.ExteriorColor, v.SeatType, v.Packs, v.Location, nullString(v.PhotoURL),
			v.Latitude, v.Longitude, now, now)
		if err != nil {
			return result, err
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO price_history (vehicle_url, price, scraped_at)
			VALUES (?, ?, ?)`, v.URL, v.Price, now); err != nil {
			return result, err
		}

	case err != nil:
		return result, err

	default:
		if currentPrice != v.Price {
			result.PriceChanged = true
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO price_history (vehicle_url, price, scraped_at)
				VALUES (?, ?, ?)`, v.URL, v.Price, now); err != nil {
				return result, err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE vehicles SET
				title = ?,
				current_price = ?,
				trim = ?,
				charge_type = ?,
				exterior_color = ?,
				seat_type = ?,
				packs = ?,
				location = ?,
				photo_url = ?,
				latitude = ?,
				longitude = ?,
				last_seen = ?,
				is_available = 1
			WHERE url = ?`,
			v.Title, v.Price, v.Trim, v.ChargeType, v.ExteriorColor,
			v.SeatType, v.Packs, v.Location, nullString(v.PhotoURL),
			v.Latitude, v.Longitude, now, v.URL)
		if err != nil {
			return result, err
		}
	}

	return result, tx.Commit()
}

func (s *SQLiteStore) MarkUnavailableExcept(ctx context.Context, observed []string) (int64, error) {
	var res sql.Result
	var err error

	if len(observed) == 0 {
		res, err = s.db.ExecContext(ctx,
			`UPDATE vehicles SET is_available = 0 WHERE is_available = 1`)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(observed)), ",")
		args := make([]interface{}, len(observed))
		for i, url := range observed {
			args[i] = url
		}
		res, err = s.db.ExecContext(ctx, `
			UPDATE vehicles SET is_available = 0
			WHERE url NOT IN (`+placeholders+`) AND is_available = 1`, args...)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const vehicleColumns = `
	url, title, current_price, original_price, trim, charge_type,
	exterior_color, seat_type, packs, location, photo_url,
	latitude, longitude, first_seen, last_seen, is_available, is_sold`

func scanVehicle(row interface{ Scan(...interface{}) error }, now time.Time) (*models.VehicleRecord, error) {
	var r models.VehicleRecord
	var originalPrice sql.NullInt64
	var photoURL sql.NullString
	var lat, lng sql.NullFloat64

	err := row.Scan(&r.URL, &r.Title, &r.Price, &originalPrice, &r.Trim, &r.ChargeType,
		&r.ExteriorColor, &r.SeatType, &r.Packs, &r.Location, &photoURL,
		&lat, &lng, &r.FirstSeen, &r.LastSeen, &r.IsAvailable, &r.IsSold)
	if err != nil {
		return nil, err
	}

	r.OriginalPrice = int(originalPrice.Int64)
	r.PhotoURL = photoURL.String
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lng.Valid {
		r.Longitude = &lng.Float64
	}
	r.IsNew = r.ComputeIsNew(now)
	return &r, nil
}

func (s *SQLiteStore) GetVehicle(ctx context.Context, url string) (*models.VehicleRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+vehicleColumns+` FROM vehicles WHERE url = ?`, url)

	r, err := scanVehicle(row, time.Now())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListVehicles(ctx context.Context) ([]models.VehicleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+vehicleColumns+` FROM vehicles ORDER BY last_seen DESC, current_price ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var vehicles []models.VehicleRecord
	for rows.Next() {
		r, err := scanVehicle(rows, now)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *r)
	}
	return vehicles, rows.Err()
}

func (s *SQLiteStore) GetPriceHistory(ctx context.Context, url string) ([]models.PriceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_url, price, scraped_at
		FROM price_history WHERE vehicle_url = ? ORDER BY scraped_at ASC`, url)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PriceHistoryEntry
	for rows.Next() {
		var e models.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.VehicleURL, &e.Price, &e.ScrapedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{}

	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM vehicles`, &stats.TotalVehicles},
		{`SELECT COUNT(*) FROM vehicles WHERE is_available = 1`, &stats.AvailableVehicles},
		{`SELECT COUNT(*) FROM vehicles WHERE is_sold = 1`, &stats.SoldVehicles},
		{`SELECT COUNT(*) FROM vehicles
			WHERE datetime(first_seen) > datetime('now', '-1 day')
			AND is_available = 1 AND is_sold = 0`, &stats.NewVehicles24h},
		{`SELECT COUNT(DISTINCT vehicle_url) FROM price_history`, &stats.WithPriceHistory},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (token, started_at, status, pages_processed,
			ads_processed, ads_added, price_changes, errors_count, error_message)
		VALUES (?, ?, ?, 0, 0, 0, 0, 0, '')`,
		run.Token, run.StartedAt, run.Status)
	if err != nil {
		return err
	}
	run.ID, err = result.LastInsertId()
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs SET finished_at = ?, status = ?, pages_processed = ?,
			ads_processed = ?, ads_added = ?, price_changes = ?, errors_count = ?,
			error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesProcessed, run.AdsProcessed,
		run.AdsAdded, run.PriceChanges, run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runID *int64, level models.LogLevel, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
