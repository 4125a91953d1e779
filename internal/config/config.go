// Package config loads process configuration from WAVEROOM_* environment
// variables, with an optional .env file for development setups.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string // WAVEROOM_DATABASE_URL (required by serve)
	NATSURL     string // WAVEROOM_NATS_URL (optional, empty = in-process bus)
	RelayAddr   string // WAVEROOM_RELAY_ADDR (default ":8090")
	RadioURL    string // WAVEROOM_RADIO_URL (upstream radio server base URL)
	RelayURL    string // WAVEROOM_RELAY_URL (relay base URL for clients)
	UserID      string // WAVEROOM_USER_ID (optional registered identity)
	IdentityDir string // WAVEROOM_IDENTITY_DIR (default ~/.local/state/waveroom/identity)
	LogLevel    string // WAVEROOM_LOG_LEVEL (default "info")

	// Engine settings
	PollInterval    time.Duration // WAVEROOM_POLL_INTERVAL (default 15s)
	SnapshotHorizon time.Duration // WAVEROOM_SNAPSHOT_HORIZON (default 15m)
	RefetchInterval time.Duration // WAVEROOM_REFETCH_INTERVAL (default 5m; 0 = disabled)

	// Relay rate limiting
	RateRPS   int // WAVEROOM_RELAY_RPS (default 20; 0 = disabled)
	RateBurst int // WAVEROOM_RELAY_BURST (default 40)

	// Archive settings
	ArchiveInterval   time.Duration // WAVEROOM_ARCHIVE_INTERVAL (default 0 = disabled)
	ArchiveS3Bucket   string        // WAVEROOM_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // WAVEROOM_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // WAVEROOM_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // WAVEROOM_ARCHIVE_S3_PREFIX (default "waveroom")
}

// Load reads the environment. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		DatabaseURL:       os.Getenv("WAVEROOM_DATABASE_URL"),
		NATSURL:           os.Getenv("WAVEROOM_NATS_URL"),
		RelayAddr:         envOrDefault("WAVEROOM_RELAY_ADDR", ":8090"),
		RadioURL:          os.Getenv("WAVEROOM_RADIO_URL"),
		RelayURL:          envOrDefault("WAVEROOM_RELAY_URL", "http://localhost:8090"),
		UserID:            os.Getenv("WAVEROOM_USER_ID"),
		IdentityDir:       os.Getenv("WAVEROOM_IDENTITY_DIR"),
		LogLevel:          envOrDefault("WAVEROOM_LOG_LEVEL", "info"),
		ArchiveS3Bucket:   os.Getenv("WAVEROOM_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("WAVEROOM_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("WAVEROOM_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("WAVEROOM_ARCHIVE_S3_PREFIX", "waveroom"),
	}

	var err error
	if c.PollInterval, err = envDuration("WAVEROOM_POLL_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if c.SnapshotHorizon, err = envDuration("WAVEROOM_SNAPSHOT_HORIZON", 15*time.Minute); err != nil {
		return nil, err
	}
	if c.RefetchInterval, err = envDuration("WAVEROOM_REFETCH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if c.ArchiveInterval, err = envDuration("WAVEROOM_ARCHIVE_INTERVAL", 0); err != nil {
		return nil, err
	}
	if c.RateRPS, err = envInt("WAVEROOM_RELAY_RPS", 20); err != nil {
		return nil, err
	}
	if c.RateBurst, err = envInt("WAVEROOM_RELAY_BURST", 40); err != nil {
		return nil, err
	}

	return c, nil
}

// RequireDatabase errors unless a database URL is configured. Server
// commands call this; the watch client does not need storage.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("WAVEROOM_DATABASE_URL is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
