package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Search    SearchConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
	Scraper   ScraperConfig
	DBPath    string
	DBURL     string // Postgres connection string; empty selects SQLite
	LogFile   string
	LogLevel  string

	ReportFile    string
	CSVFile       string
	DebugDumpPath string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ServerConfig struct {
	Addr string
}

type ScraperConfig struct {
	DelayMS    int
	TimeoutSec int
	UserAgent  string
}

// SearchConfig describes the marketplace search being tracked. Values
// can be overridden from config/search.yaml.
type SearchConfig struct {
	BaseURL    string `yaml:"base_url"`
	SearchURL  string `yaml:"search_url"`
	MaxPages   int    `yaml:"max_pages"`
	Trim       string `yaml:"trim"`
	ChargeType string `yaml:"charge_type"`
	PriceMin   int    `yaml:"price_min"`
	PriceMax   int    `yaml:"price_max"`
	Bounds     Bounds `yaml:"bounds"`
}

// Bounds is the plausibility bounding box for extracted GPS coordinates.
type Bounds struct {
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
	LngMin float64 `yaml:"lng_min"`
	LngMax float64 `yaml:"lng_max"`
}

const searchConfigPath = "config/search.yaml"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Search: SearchConfig{
			BaseURL: "https://fr.renew.auto",
			SearchURL: "https://fr.renew.auto/achat-vehicules-occasions.html" +
				"?prices.customerDisplayPrice=19000-25000" +
				"&query=renault%20megane%20e-tech%20electrique" +
				"&finishing.label.raw=Iconic",
			MaxPages:   getEnvInt("MAX_PAGES", 20),
			Trim:       "Iconic",
			ChargeType: "Optimum Charge",
			PriceMin:   19000,
			PriceMax:   25000,
			// France
			Bounds: Bounds{LatMin: 41, LatMax: 51, LngMin: -5, LngMax: 10},
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":5000"),
		},
		Scraper: ScraperConfig{
			DelayMS:    getEnvInt("SCRAPE_DELAY_MS", 500),
			TimeoutSec: getEnvInt("SCRAPE_TIMEOUT_SEC", 15),
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		DBPath:        getEnv("DB_PATH", "renault_vehicles.db"),
		DBURL:         os.Getenv("DATABASE_URL"),
		LogFile:       getEnv("LOG_FILE", "scraper.log"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ReportFile:    getEnv("REPORT_FILE", "vehicle_report.html"),
		CSVFile:       getEnv("CSV_FILE", "renault_megane.csv"),
		DebugDumpPath: getEnv("DEBUG_DUMP_PATH", "debug_fail_page.html"),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSearchConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSearchConfig() error {
	data, err := os.ReadFile(searchConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, &c.Search)
}

// Delay is the mandatory pause applied before each request.
func (c *ScraperConfig) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// Timeout bounds a single fetch.
func (c *ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
