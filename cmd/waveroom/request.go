package main

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:     "request <title> <artist>",
	Short:   "Add a song request to the queue",
	GroupID: "room",
	Args:    cobra.ExactArgs(2),
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

		title, artist := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		token, err := s.Engine.SubmitRequest(cmd.Context(), title, artist)
		if err != nil {
			return err
		}
		s.Engine.Flush()

		for _, r := range s.Engine.Requests() {
			if r.ID == token && r.Stage == model.StageFailed {
				return fmt.Errorf("request was not accepted, try again")
			}
		}

		// Find the confirmed row so we can hand back its id for voting.
		var confirmed *model.Request
		for _, r := range s.Engine.Requests() {
			if r.Title == title && r.Artist == artist && r.Stage == model.StageConfirmed {
				confirmed = r
			}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), confirmed)
		}
		if confirmed != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "requested %s - %s (%s)\n",
				confirmed.Title, confirmed.Artist, confirmed.ID)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "requested")
		}
		return nil
	},
}
