package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration values.
type Config struct {
	Secret            string
	HTTPPort          string
	Storage           string // "json" or "sqlite"
	DataDir           string
	DatabaseDSN       string
	LowStockThreshold int64
	AdminPassword     string
}

// Load reads configuration from environment variables with reasonable
// defaults.
func Load() Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	storage := os.Getenv("STORAGE")
	if storage != "sqlite" {
		storage = "json"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "pharmadesk.db"
	}

	threshold := int64(30)
	if raw := os.Getenv("LOW_STOCK_THRESHOLD"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			log.Printf("invalid LOW_STOCK_THRESHOLD value %q, defaulting to 30", raw)
		} else {
			threshold = parsed
		}
	}

	return Config{
		Secret:            secret,
		HTTPPort:          port,
		Storage:           storage,
		DataDir:           dataDir,
		DatabaseDSN:       dsn,
		LowStockThreshold: threshold,
		AdminPassword:     os.Getenv("SEED_ADMIN_PASSWORD"),
	}
}
