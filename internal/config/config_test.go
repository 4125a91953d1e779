package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnvVars = []string{
	"WAVEROOM_DATABASE_URL", "WAVEROOM_NATS_URL", "WAVEROOM_RELAY_ADDR",
	"WAVEROOM_RADIO_URL", "WAVEROOM_RELAY_URL", "WAVEROOM_USER_ID",
	"WAVEROOM_IDENTITY_DIR", "WAVEROOM_LOG_LEVEL",
	"WAVEROOM_POLL_INTERVAL", "WAVEROOM_SNAPSHOT_HORIZON", "WAVEROOM_REFETCH_INTERVAL",
	"WAVEROOM_RELAY_RPS", "WAVEROOM_RELAY_BURST",
	"WAVEROOM_ARCHIVE_INTERVAL", "WAVEROOM_ARCHIVE_S3_BUCKET",
	"WAVEROOM_ARCHIVE_S3_ENDPOINT", "WAVEROOM_ARCHIVE_S3_REGION",
	"WAVEROOM_ARCHIVE_S3_PREFIX",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.RelayAddr != ":8090" {
		t.Errorf("RelayAddr = %q", c.RelayAddr)
	}
	if c.RelayURL != "http://localhost:8090" {
		t.Errorf("RelayURL = %q", c.RelayURL)
	}
	if c.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v", c.PollInterval)
	}
	if c.SnapshotHorizon != 15*time.Minute {
		t.Errorf("SnapshotHorizon = %v", c.SnapshotHorizon)
	}
	if c.RefetchInterval != 5*time.Minute {
		t.Errorf("RefetchInterval = %v", c.RefetchInterval)
	}
	if c.ArchiveInterval != 0 {
		t.Errorf("ArchiveInterval = %v, want disabled", c.ArchiveInterval)
	}
	if c.RateRPS != 20 || c.RateBurst != 40 {
		t.Errorf("rate limits = %d/%d", c.RateRPS, c.RateBurst)
	}
	if err := c.RequireDatabase(); err == nil {
		t.Error("RequireDatabase must fail without WAVEROOM_DATABASE_URL")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("WAVEROOM_DATABASE_URL", "postgres://db:5432/waveroom")
	t.Setenv("WAVEROOM_SNAPSHOT_HORIZON", "30m")
	t.Setenv("WAVEROOM_REFETCH_INTERVAL", "0")
	t.Setenv("WAVEROOM_RELAY_RPS", "5")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.RequireDatabase(); err != nil {
		t.Errorf("RequireDatabase: %v", err)
	}
	if c.SnapshotHorizon != 30*time.Minute {
		t.Errorf("SnapshotHorizon = %v", c.SnapshotHorizon)
	}
	if c.RefetchInterval != 0 {
		t.Errorf("RefetchInterval = %v, want disabled", c.RefetchInterval)
	}
	if c.RateRPS != 5 {
		t.Errorf("RateRPS = %d", c.RateRPS)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("WAVEROOM_POLL_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Load must reject unparseable durations")
	}
}

func TestStations_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.toml")
	t.Setenv("WAVEROOM_STATIONS_FILE", path)

	cfg, err := LoadStations()
	if err != nil {
		t.Fatalf("LoadStations (missing file): %v", err)
	}
	if len(cfg.Stations) != 0 || cfg.Active != "" {
		t.Fatalf("fresh config = %+v", cfg)
	}

	cfg.Stations["kexp"] = Station{RelayURL: "https://relay.kexp.example", NATSURL: "nats://bus:4222"}
	cfg.Stations["local"] = Station{RelayURL: "http://localhost:8090"}
	cfg.Active = "kexp"
	if err := SaveStations(cfg); err != nil {
		t.Fatalf("SaveStations: %v", err)
	}

	loaded, err := LoadStations()
	if err != nil {
		t.Fatalf("LoadStations: %v", err)
	}
	active, ok := loaded.ActiveStation()
	if !ok || active.RelayURL != "https://relay.kexp.example" {
		t.Errorf("active = %+v ok=%v", active, ok)
	}
	if got := loaded.Stations["local"].RelayURL; got != "http://localhost:8090" {
		t.Errorf("local relay = %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestStations_NoActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.toml")
	t.Setenv("WAVEROOM_STATIONS_FILE", path)

	cfg := StationsConfig{Stations: map[string]Station{"x": {RelayURL: "http://x"}}}
	if _, ok := cfg.ActiveStation(); ok {
		t.Error("no active profile must resolve to false")
	}
}
