package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/crop-yield-analytics/internal/common"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type AppConfig struct {
	Port string

	// MLServiceURL is the base URL of the prediction service.
	MLServiceURL string
	// HTTPTimeout bounds each outbound call to the prediction service.
	HTTPTimeout time.Duration

	StoreDriver string
	DatabaseDSN string

	// Record retention.
	StoreMaxRecords int           // memory store cap (0 = unlimited)
	StoreMaxAge     time.Duration // prune records older than this (0 = keep forever)

	CatalogRefreshInterval time.Duration
	PruneInterval          time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string

	ModelAccuracyRate float64
	HistoryLimit      int
	SeedOnStart       bool

	GeocoderAPIKey string
}

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           getenvDefault("PORT", "8080"),
		MLServiceURL:   getenvDefault("ML_SERVICE_URL", "http://127.0.0.1:8000"),
		StoreDriver:    strings.ToLower(getenvDefault("STORE_DRIVER", StoreMemory)),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		KafkaBrokers:   common.SplitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getenvDefault("KAFKA_TOPIC", "crop.predictions"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		HistoryLimit:   getenvInt("HISTORY_LIMIT", 10),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "0"); err != nil {
		return nil, err
	}
	if cfg.CatalogRefreshInterval, err = getenvDuration("CATALOG_REFRESH_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.PruneInterval, err = getenvDuration("PRUNE_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	cfg.StoreMaxRecords = getenvInt("STORE_MAX_RECORDS", 0)

	rate, err := strconv.ParseFloat(getenvDefault("MODEL_ACCURACY_RATE", "87.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MODEL_ACCURACY_RATE: %w", err)
	}
	cfg.ModelAccuracyRate = rate

	seed, err := strconv.ParseBool(getenvDefault("SEED_ON_START", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_ON_START: %w", err)
	}
	cfg.SeedOnStart = seed

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *AppConfig) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres, StoreSQLite:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.CatalogRefreshInterval <= 0 {
		return fmt.Errorf("CATALOG_REFRESH_INTERVAL must be positive")
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("PRUNE_INTERVAL must be positive")
	}
	if c.StoreMaxAge < 0 {
		return fmt.Errorf("STORE_MAX_AGE must not be negative")
	}
	if c.ModelAccuracyRate < 0 || c.ModelAccuracyRate > 100 {
		return fmt.Errorf("MODEL_ACCURACY_RATE must be within [0, 100]")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
