package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/config"
	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/identity"
	"github.com/alfredjeanlab/waveroom/internal/nowplaying"
	"github.com/alfredjeanlab/waveroom/internal/room"
	"github.com/alfredjeanlab/waveroom/internal/store/postgres"
)

// loadConfig reads the environment and overlays the active station
// profile for any setting the environment left empty.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	stations, err := config.LoadStations()
	if err != nil {
		return nil, err
	}
	if st, ok := stations.ActiveStation(); ok {
		if os.Getenv("WAVEROOM_RELAY_URL") == "" && st.RelayURL != "" {
			cfg.RelayURL = st.RelayURL
		}
		if cfg.NATSURL == "" {
			cfg.NATSURL = st.NATSURL
		}
		if cfg.UserID == "" {
			cfg.UserID = st.UserID
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openBus connects to NATS when configured, and otherwise falls back to
// the in-process bus. The fallback still reconciles against the store,
// it just cannot see other processes' broadcasts.
func openBus(cfg *config.Config, logger *slog.Logger) (events.Publisher, events.Subscriber, func(), error) {
	if cfg.NATSURL == "" {
		logger.Warn("no broker configured, broadcasts stay in-process (set WAVEROOM_NATS_URL)")
		bus := events.NewMemoryBus()
		return bus, bus, func() { bus.Close() }, nil
	}

	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting publisher to NATS: %w", err)
	}
	sub, err := events.NewNATSSubscriber(cfg.NATSURL)
	if err != nil {
		pub.Close()
		return nil, nil, nil, fmt.Errorf("connecting subscriber to NATS: %w", err)
	}
	cleanup := func() {
		sub.Close()
		pub.Close()
	}
	return pub, sub, cleanup, nil
}

func identityDir(cfg *config.Config) (string, error) {
	if cfg.IdentityDir != "" {
		return cfg.IdentityDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "waveroom", "identity"), nil
}

// openIdentity loads or mints this machine's identity.
func openIdentity(cfg *config.Config) (*identity.Provider, func(), error) {
	dir, err := identityDir(cfg)
	if err != nil {
		return nil, nil, err
	}
	ks, err := identity.OpenPebble(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening identity keystore: %w", err)
	}
	prov, err := identity.NewProvider(ks, cfg.UserID)
	if err != nil {
		ks.Close()
		return nil, nil, err
	}
	return prov, func() { ks.Close() }, nil
}

type session struct {
	Engine   *room.Engine
	Identity *identity.Provider
	cleanups []func()
}

func (s *session) Close(ctx context.Context) {
	if s.Engine != nil {
		s.Engine.Close(ctx)
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

type feedMode int

const (
	feedNone feedMode = iota
	feedStream
	feedPoll
)

// joinRoom assembles a full engine session: store, bus, identity, and
// optionally the now-playing feed from the relay.
func joinRoom(ctx context.Context, cfg *config.Config, logger *slog.Logger, feed feedMode) (*session, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	s := &session{}
	fail := func(err error) (*session, error) {
		s.Close(ctx)
		return nil, err
	}

	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("connecting to postgres: %w", err))
	}
	s.cleanups = append(s.cleanups, func() { st.Close() })

	pub, sub, busCleanup, err := openBus(cfg, logger)
	if err != nil {
		return fail(err)
	}
	s.cleanups = append(s.cleanups, busCleanup)

	prov, idCleanup, err := openIdentity(cfg)
	if err != nil {
		return fail(err)
	}
	s.cleanups = append(s.cleanups, idCleanup)
	s.Identity = prov

	roomCfg := room.Config{
		Store:           st,
		Publisher:       pub,
		Subscriber:      sub,
		Identity:        prov.Current(),
		SnapshotHorizon: cfg.SnapshotHorizon,
		RefetchInterval: cfg.RefetchInterval,
		Logger:          logger,
	}
	if feed != feedNone && cfg.RelayURL != "" {
		base := strings.TrimRight(cfg.RelayURL, "/")
		fc := &nowplaying.Config{
			PollURL:      base + "/v1/nowplaying",
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		}
		if feed == feedStream {
			fc.StreamURL = base + "/v1/stream"
		}
		roomCfg.Feed = fc
	}

	eng, err := room.Join(ctx, roomCfg)
	if err != nil {
		return fail(err)
	}
	s.Engine = eng
	return s, nil
}

// flushAndClose waits for in-flight optimistic writes before leaving,
// bounded so a dead broker cannot hang the CLI.
func flushAndClose(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close(ctx)
}
