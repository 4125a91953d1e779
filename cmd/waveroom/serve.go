package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfredjeanlab/waveroom/internal/archive"
	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/relay"
	"github.com/alfredjeanlab/waveroom/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the station relay",
	GroupID: "station",
	Long: `serve runs the relay in front of the radio server: it proxies and
caches the now-playing endpoint, fans the feed out over one SSE stream,
bridges room broadcasts from the broker, and optionally archives the
transcript to S3.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := relay.New(relay.Config{
			Addr:         cfg.RelayAddr,
			UpstreamURL:  cfg.RadioURL,
			PollInterval: cfg.PollInterval,
			RateRPS:      cfg.RateRPS,
			RateBurst:    cfg.RateBurst,
			Logger:       logger,
		})

		// Bridge room broadcasts onto the relay's SSE stream so browser
		// clients without a broker connection still see them.
		if cfg.NATSURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer sub.Close()
			cancel, err := srv.AttachBus(sub)
			if err != nil {
				return err
			}
			defer cancel()
			logger.Info("bus bridge enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("bus bridge disabled (WAVEROOM_NATS_URL not set)")
		}

		// Archive scheduler wants the store; the relay itself does not.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			st, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Prefix,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("archive destination unavailable", "error", err)
			} else {
				scheduler = archive.NewScheduler(st, []archive.Destination{dest}, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started",
					"interval", cfg.ArchiveInterval,
					"bucket", cfg.ArchiveS3Bucket,
				)
			}
		}

		logger.Info("relay listening", "addr", cfg.RelayAddr, "upstream", cfg.RadioURL)
		err = srv.Run(ctx)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}
		return err
	},
}
