package main

import (
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "Show the current song-request queue",
	GroupID: "room",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		reqs := s.Engine.Requests()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), reqs)
		}
		printQueue(cmd.OutOrStdout(), reqs)
		return nil
	},
}
