package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/waveroom/internal/config"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStationAddUseList(t *testing.T) {
	t.Setenv("WAVEROOM_STATIONS_FILE", filepath.Join(t.TempDir(), "stations.toml"))

	if _, err := runCommand(t, "station", "add", "nightwave", "https://relay.nightwave.example",
		"--nats", "nats://nightwave:4222"); err != nil {
		t.Fatalf("station add: %v", err)
	}
	if _, err := runCommand(t, "station", "use", "nightwave"); err != nil {
		t.Fatalf("station use: %v", err)
	}

	out, err := runCommand(t, "station", "list")
	if err != nil {
		t.Fatalf("station list: %v", err)
	}
	if !strings.Contains(out, "* nightwave") {
		t.Errorf("list output missing active marker:\n%s", out)
	}
	if !strings.Contains(out, "https://relay.nightwave.example") {
		t.Errorf("list output missing relay URL:\n%s", out)
	}
}

func TestStationUse_Unknown(t *testing.T) {
	t.Setenv("WAVEROOM_STATIONS_FILE", filepath.Join(t.TempDir(), "stations.toml"))

	if _, err := runCommand(t, "station", "use", "nope"); err == nil {
		t.Fatal("expected error for unknown station")
	}
}

func TestStationRemove_ClearsActive(t *testing.T) {
	t.Setenv("WAVEROOM_STATIONS_FILE", filepath.Join(t.TempDir(), "stations.toml"))

	if _, err := runCommand(t, "station", "add", "a", "https://a.example"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCommand(t, "station", "use", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCommand(t, "station", "remove", "a"); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadStations()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Active != "" || len(cfg.Stations) != 0 {
		t.Errorf("config after remove = %+v, want empty", cfg)
	}
}

func TestLoadConfig_StationOverlay(t *testing.T) {
	t.Setenv("WAVEROOM_STATIONS_FILE", filepath.Join(t.TempDir(), "stations.toml"))
	t.Setenv("WAVEROOM_RELAY_URL", "")
	t.Setenv("WAVEROOM_NATS_URL", "")
	t.Setenv("WAVEROOM_USER_ID", "")

	if err := config.SaveStations(config.StationsConfig{
		Active: "nightwave",
		Stations: map[string]config.Station{
			"nightwave": {
				RelayURL: "https://relay.nightwave.example",
				NATSURL:  "nats://nightwave:4222",
				UserID:   "dj",
			},
		},
	}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RelayURL != "https://relay.nightwave.example" {
		t.Errorf("RelayURL = %q, want station profile value", cfg.RelayURL)
	}
	if cfg.NATSURL != "nats://nightwave:4222" || cfg.UserID != "dj" {
		t.Errorf("NATSURL/UserID = %q/%q, want station profile values", cfg.NATSURL, cfg.UserID)
	}
}

func TestLoadConfig_EnvBeatsStation(t *testing.T) {
	t.Setenv("WAVEROOM_STATIONS_FILE", filepath.Join(t.TempDir(), "stations.toml"))
	t.Setenv("WAVEROOM_RELAY_URL", "https://env.example")

	if err := config.SaveStations(config.StationsConfig{
		Active: "nightwave",
		Stations: map[string]config.Station{
			"nightwave": {RelayURL: "https://relay.nightwave.example"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RelayURL != "https://env.example" {
		t.Errorf("RelayURL = %q, environment should win over the profile", cfg.RelayURL)
	}
}
