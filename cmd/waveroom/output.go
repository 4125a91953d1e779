package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMessage(m *model.Message) string {
	ts := m.CreatedAt.Local().Format("15:04:05")
	line := fmt.Sprintf("%s %s  %s", ui.Muted(ts), ui.Author(m.Author.DisplayName()), m.Body)
	switch m.Stage {
	case model.StageOptimistic:
		line += ui.Muted(" (sending)")
	case model.StageFailed:
		line += ui.Failed(" (failed, retry with: waveroom send --retry)")
	}
	return line
}

func printQueue(w io.Writer, reqs []*model.Request) {
	if len(reqs) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  VOTES\tTITLE\tARTIST\tID")
	for _, r := range reqs {
		marker := " "
		if r.Voted {
			marker = "*"
		}
		title := r.Title
		if r.Status == model.StatusPlaying {
			title = ui.Live("▶ " + title)
		} else {
			title = ui.Title(title)
		}
		votes := fmt.Sprintf("%s %d", marker, r.VoteCount)
		if r.Stage == model.StageFailed {
			votes = ui.Failed("!")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", votes, title, r.Artist, ui.Muted(r.ID))
	}
	tw.Flush()
}

func formatNowPlaying(np model.NowPlaying) string {
	if np.Current == nil {
		return ui.Muted("nothing playing")
	}
	line := fmt.Sprintf("%s - %s", ui.Title(np.Current.Title), ui.Author(np.Current.Artist))
	if np.Live {
		line += " " + ui.Live("[live]")
	}
	if np.Listeners > 0 {
		line += ui.Muted(fmt.Sprintf("  %d listening", np.Listeners))
	}
	if !np.Current.StartedAt.IsZero() {
		line += ui.Muted("  started " + np.Current.StartedAt.Local().Format(time.Kitchen))
	}
	return line
}
