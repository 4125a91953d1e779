package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show relay health and what is playing",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base := strings.TrimRight(cfg.RelayURL, "/")
		client := &http.Client{Timeout: 10 * time.Second}
		out := cmd.OutOrStdout()

		healthy := true
		resp, err := client.Get(base + "/v1/health")
		if err != nil || resp.StatusCode != http.StatusOK {
			healthy = false
		}
		if resp != nil {
			resp.Body.Close()
		}

		var np *model.NowPlaying
		if healthy {
			resp, err := client.Get(base + "/v1/nowplaying")
			if err == nil {
				body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
				resp.Body.Close()
				if readErr == nil && resp.StatusCode == http.StatusOK {
					var decoded model.NowPlaying
					if json.Unmarshal(body, &decoded) == nil {
						np = &decoded
					}
				}
			}
		}

		if jsonOutput {
			return printJSON(out, map[string]any{
				"relay_url":   cfg.RelayURL,
				"healthy":     healthy,
				"now_playing": np,
			})
		}

		if !healthy {
			fmt.Fprintf(out, "relay %s: %s\n", cfg.RelayURL, ui.Failed("unreachable"))
			return nil
		}
		fmt.Fprintf(out, "relay %s: %s\n", cfg.RelayURL, ui.Live("ok"))
		if np != nil {
			fmt.Fprintln(out, formatNowPlaying(*np))
		}
		return nil
	},
}
