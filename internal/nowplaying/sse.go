package nowplaying

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/waveroom/internal/events"
)

// streamOnce opens the SSE stream and consumes events until the
// connection drops. A successful connect resets the failure counter.
func (c *Client) streamOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StreamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.mu.Lock()
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nowplaying: stream status %d", resp.StatusCode)
	}

	c.resetAttempts()
	c.setState(StateConnected)

	return c.readEvents(resp.Body)
}

// readEvents parses the event-stream framing: id/event/data fields
// accumulate until a blank line dispatches the event. Comment lines
// (leading colon) are keepalives and are skipped.
func (c *Client) readEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		id      string
		name    string
		data    bytes.Buffer
		hasData bool
	)
	dispatch := func() {
		if hasData {
			if id != "" {
				c.mu.Lock()
				c.lastEventID = id
				c.mu.Unlock()
			}
			c.dispatchEvent(name, data.Bytes())
		}
		id, name = "", ""
		data.Reset()
		hasData = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			hasData = true
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("nowplaying: stream closed")
}

func (c *Client) dispatchEvent(name string, data []byte) {
	switch name {
	case "", events.EventTrackUpdate:
		c.handleTrack(data)
	default:
		c.logger.Debug("nowplaying: ignoring event", "event", name)
	}
}
