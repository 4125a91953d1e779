package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/alfredjeanlab/waveroom/internal/config"
	"github.com/spf13/cobra"
)

var stationCmd = &cobra.Command{
	Use:     "station",
	Short:   "Manage named station profiles",
	GroupID: "system",
}

var stationAddCmd = &cobra.Command{
	Use:   "add <name> <relay-url>",
	Short: "Add or update a station profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, relayURL := args[0], args[1]
		natsURL, _ := cmd.Flags().GetString("nats")
		userID, _ := cmd.Flags().GetString("user")

		cfg, err := config.LoadStations()
		if err != nil {
			return err
		}
		if cfg.Stations == nil {
			cfg.Stations = make(map[string]config.Station)
		}
		cfg.Stations[name] = config.Station{RelayURL: relayURL, NATSURL: natsURL, UserID: userID}
		if err := config.SaveStations(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "station %q added (%s)\n", name, relayURL)
		return nil
	},
}

var stationRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a station profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := config.LoadStations()
		if err != nil {
			return err
		}
		if _, ok := cfg.Stations[name]; !ok {
			return fmt.Errorf("station %q not found", name)
		}
		delete(cfg.Stations, name)
		if cfg.Active == name {
			cfg.Active = ""
		}
		if err := config.SaveStations(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "station %q removed\n", name)
		return nil
	},
}

var stationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List station profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadStations()
		if err != nil {
			return err
		}
		if len(cfg.Stations) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no stations configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tRELAY\tBROKER")
		for name, st := range cfg.Stations {
			marker := " "
			if name == cfg.Active {
				marker = "*"
			}
			broker := st.NATSURL
			if broker == "" {
				broker = "-"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, name, st.RelayURL, broker)
		}
		return w.Flush()
	},
}

var stationUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active station",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := config.LoadStations()
		if err != nil {
			return err
		}
		if _, ok := cfg.Stations[name]; !ok {
			return fmt.Errorf("station %q not found", name)
		}
		cfg.Active = name
		if err := config.SaveStations(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active station is now %q\n", name)
		return nil
	},
}

func init() {
	stationAddCmd.Flags().String("nats", "", "broker URL for this station")
	stationAddCmd.Flags().String("user", "", "registered user id for this station")

	stationCmd.AddCommand(stationAddCmd)
	stationCmd.AddCommand(stationRemoveCmd)
	stationCmd.AddCommand(stationListCmd)
	stationCmd.AddCommand(stationUseCmd)
}
