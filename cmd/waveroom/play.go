package main

import (
	"fmt"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:     "play <request-id> [played]",
	Short:   "Mark a request as playing, or as played",
	GroupID: "station",
	Long: `play transitions a song request on air. With just an id the request
is marked playing and pinned to the top of everyone's queue; with the
word "played" it is marked finished and leaves the queue.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.StatusPlaying
		if len(args) == 2 {
			if args[1] != "played" {
				return fmt.Errorf("unknown transition %q (only \"played\")", args[1])
			}
			status = model.StatusPlayed
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		s, err := joinRoom(cmd.Context(), cfg, logger, feedNone)
		if err != nil {
			return err
		}
		defer flushAndClose(s)

		if err := s.Engine.SetRequestStatus(cmd.Context(), args[0], status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "request %s marked %s\n", args[0], status)
		return nil
	},
}
