package main

import (
	"os"

	"github.com/alfredjeanlab/waveroom/internal/ui"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "waveroom <command>",
	Short: "Shared listening-room client and relay",
	Long: `waveroom is the client and relay for a shared listening room:
a live chat transcript, a ranked song-request queue, and the station's
now-playing feed, kept in sync across everyone in the room.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.ForceNoColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "room", Title: "Room:"},
		&cobra.Group{ID: "station", Title: "Station:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Room
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(nameCmd)

	// Station
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)

	// System
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stationCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
