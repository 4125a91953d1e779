package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/nowplaying"
	"github.com/alfredjeanlab/waveroom/internal/ui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Join the room and follow it live",
	GroupID: "room",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pollFeed, _ := cmd.Flags().GetBool("poll")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mode := feedStream
		if pollFeed {
			mode = feedPoll
		}
		s, err := joinRoom(ctx, cfg, logger, mode)
		if err != nil {
			return err
		}
		defer flushAndClose(s)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "joined as %s\n\n", ui.Author(s.Identity.Current().DisplayName()))

		seen := make(map[string]model.Stage)
		for _, m := range s.Engine.Messages() {
			fmt.Fprintln(out, formatMessage(m))
			seen[m.ID] = m.Stage
		}
		printQueue(out, s.Engine.Requests())

		var (
			lastTrack  string
			lastTyping string
			lastState  nowplaying.State
			lastCount  int
		)
		lastQueue := queueFingerprint(s.Engine.Requests())

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "\nleaving room")
				return nil
			case <-ticker.C:
			}

			for _, m := range s.Engine.Messages() {
				if stage, ok := seen[m.ID]; !ok || stage != m.Stage {
					fmt.Fprintln(out, formatMessage(m))
					seen[m.ID] = m.Stage
				}
			}

			if fp := queueFingerprint(s.Engine.Requests()); fp != lastQueue {
				lastQueue = fp
				fmt.Fprintln(out)
				printQueue(out, s.Engine.Requests())
			}

			np, state := s.Engine.NowPlaying()
			if line := formatNowPlaying(np); line != lastTrack && np.Current != nil {
				lastTrack = line
				fmt.Fprintln(out, line)
			}
			if state != lastState {
				lastState = state
				if state == nowplaying.StateError {
					fmt.Fprintln(out, ui.Failed("now-playing feed lost, retrying"))
				}
			}

			if n := s.Engine.Listeners(); n != lastCount {
				lastCount = n
				fmt.Fprintln(out, ui.Muted(fmt.Sprintf("%d listening in the room", n)))
			}

			if typing := strings.Join(s.Engine.TypingNow(), ", "); typing != lastTyping {
				lastTyping = typing
				if typing != "" {
					fmt.Fprintln(out, ui.Muted(typing+" typing..."))
				}
			}
		}
	},
}

// queueFingerprint summarizes display-relevant queue state so the watch
// loop only reprints on change.
func queueFingerprint(reqs []*model.Request) string {
	var b strings.Builder
	for _, r := range reqs {
		fmt.Fprintf(&b, "%s:%d:%s:%v:%s;", r.ID, r.VoteCount, r.Status, r.Voted, r.Stage)
	}
	return b.String()
}

func init() {
	watchCmd.Flags().Bool("poll", false, "poll the relay instead of streaming")
}
