package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/store"
)

// Export depth per run. The archive is a rolling snapshot, not a full
// dump; older rows are already in previous objects.
const (
	exportMessageLimit = 10000
	exportHistoryLimit = 1000
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
	HistoryCount int       `json:"history_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the recent transcript and play history as JSONL.
// Messages come out oldest-first; history newest-first, matching how
// the store returns them.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	msgs, err := s.ListMessages(ctx, exportMessageLimit)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	history, err := s.ListHistory(ctx, exportHistoryLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		MessageCount: len(msgs),
		HistoryCount: len(history),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, m := range msgs {
		if err := enc.Encode(record{Type: "message", Data: m}); err != nil {
			return fmt.Errorf("encode message %s: %w", m.ID, err)
		}
	}
	for _, h := range history {
		if err := enc.Encode(record{Type: "history", Data: h}); err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
	}
	return nil
}
