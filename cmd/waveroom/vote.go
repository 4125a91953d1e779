package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var voteCmd = &cobra.Command{
	Use:     "vote <request-id>",
	Short:   "Toggle your vote on a song request",
	GroupID: "room",
	Args:    cobra.ExactArgs(1),
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

		voted, err := s.Engine.ToggleVote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		s.Engine.Flush()

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]bool{"voted": voted})
		}
		if voted {
			fmt.Fprintln(cmd.OutOrStdout(), "vote added")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "vote removed")
		}
		return nil
	},
}
