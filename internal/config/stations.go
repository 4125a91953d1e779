package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// StationsConfig holds named station profiles and tracks which one is
// active. Stored as TOML under the user's state directory so the CLI
// can switch rooms without re-exporting environment variables.
type StationsConfig struct {
	Active   string             `toml:"active"`
	Stations map[string]Station `toml:"stations"`
}

// Station is a named room profile.
type Station struct {
	RelayURL string `toml:"relay_url"`
	NATSURL  string `toml:"nats_url,omitempty"`
	UserID   string `toml:"user_id,omitempty"`
}

// StationsPath returns the profile file location. Overridable with
// WAVEROOM_STATIONS_FILE, mainly for tests.
func StationsPath() (string, error) {
	if p := os.Getenv("WAVEROOM_STATIONS_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "waveroom")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "stations.toml"), nil
}

// LoadStations reads the profile file. A missing file yields an empty
// config rather than an error.
func LoadStations() (StationsConfig, error) {
	path, err := StationsPath()
	if err != nil {
		return StationsConfig{}, err
	}
	var cfg StationsConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return StationsConfig{Stations: map[string]Station{}}, nil
		}
		return StationsConfig{}, err
	}
	if cfg.Stations == nil {
		cfg.Stations = map[string]Station{}
	}
	return cfg, nil
}

// SaveStations writes the profile file with owner-only permissions.
func SaveStations(cfg StationsConfig) error {
	path, err := StationsPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ActiveStation resolves the active profile, if any.
func (c StationsConfig) ActiveStation() (Station, bool) {
	if c.Active == "" {
		return Station{}, false
	}
	s, ok := c.Stations[c.Active]
	return s, ok
}
