package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"renew_scraper/models"
)

// PostgresStore is the pgx-backed VehicleStore, selected when
// DATABASE_URL is set. Schema mirrors the SQLite store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
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
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		first_seen TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		is_sold BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		vehicle_url TEXT NOT NULL REFERENCES vehicles(url),
		price INTEGER NOT NULL,
		scraped_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id BIGSERIAL PRIMARY KEY,
		token TEXT,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		pages_processed INTEGER,
		ads_processed INTEGER,
		ads_added INTEGER,
		price_changes INTEGER,
		errors_count INTEGER,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT,
		timestamp TIMESTAMPTZ,
		level TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_url ON price_history(vehicle_url);
	CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(scraped_at);
	CREATE INDEX IF NOT EXISTS idx_vehicles_available ON vehicles(is_available);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) ReconcileVehicle(ctx context.Context, v *models.Vehicle, now time.Time) (ReconcileResult, error) {
	var result ReconcileResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer tx.Rollback(ctx)

	var currentPrice int
	err = tx.QueryRow(ctx,
		`SELECT current_price FROM vehicles WHERE url = $1`, v.URL).Scan(&currentPrice)

	switch {
	case err == pgx.ErrNoRows:
		result.IsNew = true
		_, err = tx.Exec(ctx, `
			INSERT INTO vehicles (
				url, title, current_price, original_price, trim, charge_type,
				exterior_color, seat_type, packs, location, photo_url,
				latitude, longitude, first_seen, last_seen, is_available, is_sold
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE, FALSE)`,
			v.URL, v.Title, v.Price, v.Price, v.Trim, v.ChargeType,
			v.ExteriorColor, v.SeatType, v.Packs, v.Location, emptyToNil(v.PhotoURL),
			v.Latitude, v.Longitude, now, now)
		if err != nil {
			return result, err
		}

		if _, err = tx.Exec(ctx, `
			INSERT INTO price_history (vehicle_url, price, scraped_at)
			VALUES ($1, $2, $3)`, v.URL, v.Price, now); err != nil {
			return result, err
		}

	case err != nil:
		return result, err

	default:
		if currentPrice != v.Price {
			result.PriceChanged = true
			if _, err = tx.Exec(ctx, `
				INSERT INTO price_history (vehicle_url, price, scraped_at)
				VALUES ($1, $2, $3)`, v.URL, v.Price, now); err != nil {
				return result, err
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE vehicles SET
				title = $1, current_price = $2, trim = $3, charge_type = $4,
				exterior_color = $5, seat_type = $6, packs = $7, location = $8,
				photo_url = $9, latitude = $10, longitude = $11, last_seen = $12,
				is_available = TRUE
			WHERE url = $13`,
			v.Title, v.Price, v.Trim, v.ChargeType, v.ExteriorColor,
			v.SeatType, v.Packs, v.Location, emptyToNil(v.PhotoURL),
			v.Latitude, v.Longitude, now, v.URL)
		if err != nil {
			return result, err
		}
	}

	return result, tx.Commit(ctx)
}

func (s *PostgresStore) MarkUnavailableExcept(ctx context.Context, observed []string) (int64, error) {
	if len(observed) == 0 {
		tag, err := s.pool.Exec(ctx,
			`UPDATE vehicles SET is_available = FALSE WHERE is_available = TRUE`)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE vehicles SET is_available = FALSE
		WHERE NOT (url = ANY($1)) AND is_available = TRUE`, observed)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const pgVehicleColumns = `
	url, title, current_price, COALESCE(original_price, 0), trim, charge_type,
	exterior_color, seat_type, packs, location, COALESCE(photo_url, ''),
	latitude, longitude, first_seen, last_seen, is_available, is_sold`

func (s *PostgresStore) scanVehicle(row pgx.Row, now time.Time) (*models.VehicleRecord, error) {
	var r models.VehicleRecord
	err := row.Scan(&r.URL, &r.Title, &r.Price, &r.OriginalPrice, &r.Trim, &r.ChargeType,
		&r.ExteriorColor, &r.SeatType, &r.Packs, &r.Location, &r.PhotoURL,
		&r.Latitude, &r.Longitude, &r.FirstSeen, &r.LastSeen, &r.IsAvailable, &r.IsSold)
	if err != nil {
		return nil, err
	}
	r.IsNew = r.ComputeIsNew(now)
	return &r, nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, url string) (*models.VehicleRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+pgVehicleColumns+` FROM vehicles WHERE url = $1`, url)

	r, err := s.scanVehicle(row, time.Now())
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context) ([]models.VehicleRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+pgVehicleColumns+` FROM vehicles ORDER BY last_seen DESC, current_price ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var vehicles []models.VehicleRecord
	for rows.Next() {
		r, err := s.scanVehicle(rows, now)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *r)
	}
	return vehicles, rows.Err()
}

func (s *PostgresStore) GetPriceHistory(ctx context.Context, url string) ([]models.PriceHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vehicle_url, price, scraped_at
		FROM price_history WHERE vehicle_url = $1 ORDER BY scraped_at ASC`, url)
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

func (s *PostgresStore) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{}

	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM vehicles`, &stats.TotalVehicles},
		{`SELECT COUNT(*) FROM vehicles WHERE is_available`, &stats.AvailableVehicles},
		{`SELECT COUNT(*) FROM vehicles WHERE is_sold`, &stats.SoldVehicles},
		{`SELECT COUNT(*) FROM vehicles
			WHERE first_seen > NOW() - INTERVAL '1 day'
			AND is_available AND NOT is_sold`, &stats.NewVehicles24h},
		{`SELECT COUNT(DISTINCT vehicle_url) FROM price_history`, &stats.WithPriceHistory},
	}

	for _, q := range queries {
		if err := s.pool.QueryRow(ctx, q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO scrape_runs (token, started_at, status, pages_processed,
			ads_processed, ads_added, price_changes, errors_count, error_message)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 0, '')
		RETURNING id`,
		run.Token, run.StartedAt, run.Status).Scan(&run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET finished_at = $1, status = $2, pages_processed = $3,
			ads_processed = $4, ads_added = $5, price_changes = $6, errors_count = $7,
			error_message = $8
		WHERE id = $9`,
		run.FinishedAt, run.Status, run.PagesProcessed, run.AdsProcessed,
		run.AdsAdded, run.PriceChanges, run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

func (s *PostgresStore) Log(ctx context.Context, runID *int64, level models.LogLevel, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message)
		VALUES ($1, $2, $3, $4)`,
		runID, time.Now(), level, message)
	return err
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
