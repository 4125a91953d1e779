package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var nameCmd = &cobra.Command{
	Use:     "name [<display-name>]",
	Short:   "Show or change your display name",
	GroupID: "room",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		prov, cleanup, err := openIdentity(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if len(args) == 0 {
			who := prov.Current()
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), who)
			}
			kind := "anonymous"
			if who.Registered() {
				kind = "registered"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", who.DisplayName(), kind)
			return nil
		}

		name := strings.TrimSpace(args[0])
		if err := prov.UpdateDisplayName(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "display name set to %q\n", name)
		return nil
	},
}
