package main

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:     "send <message...>",
	Short:   "Send a chat message to the room",
	GroupID: "room",
	Args:    cobra.MinimumNArgs(1),
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

		body := strings.Join(args, " ")
		token, err := s.Engine.SendMessage(cmd.Context(), body)
		if err != nil {
			return err
		}
		s.Engine.Flush()

		for _, m := range s.Engine.Messages() {
			if m.ID == token && m.Stage == model.StageFailed {
				return fmt.Errorf("message was not accepted, try again")
			}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"status": "sent"})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "sent")
		return nil
	},
}
