// Package nowplaying consumes the station's now-playing feed.
//
// The client prefers the relay's SSE stream and falls back to periodic
// polling whenever the stream is not connected; the two modes never run
// at the same time. Stream drops reconnect on a fixed backoff ladder
// with a cap on consecutive failures; once the cap is hit the client
// parks in the error state (still polling the fallback, if configured)
// until a manual Reconnect restarts the attempts.
package nowplaying

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

// State is the connection state of the feed client. Transitions go
// through a single path so observers see every change in order.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// backoffLadder is the delay before each consecutive reconnect attempt.
// The last rung repeats until the attempt cap.
var backoffLadder = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

const defaultMaxAttempts = 10

// Config configures the feed client.
type Config struct {
	// StreamURL is the SSE endpoint.
	StreamURL string

	// PollURL is the JSON endpoint. With no StreamURL it is the only
	// feed source; with one, it is polled while the stream is down.
	PollURL string

	// PollInterval is the polling cadence. Default: 15 seconds.
	PollInterval time.Duration

	// MaxAttempts caps consecutive failed connection attempts before
	// the client stops retrying on its own and waits for a manual
	// Reconnect. Default: 10. Reconnect resets the counter.
	MaxAttempts int

	// Backoff overrides the reconnect delay ladder. Tests only.
	Backoff []time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// TrackFunc receives each decoded now-playing update.
type TrackFunc func(model.NowPlaying)

// StateFunc observes connection state transitions.
type StateFunc func(State)

// Client streams or polls the now-playing feed and invokes the
// callbacks from its run goroutine.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	onTrack TrackFunc
	onState StateFunc

	mu          sync.Mutex
	state       State
	attempts    int
	lastEventID string

	reconnect chan struct{}
	stopOnce  sync.Once
	stop      chan struct{}
}

func New(cfg Config, onTrack TrackFunc, onState StateFunc) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = backoffLadder
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No overall timeout: the stream response body stays open.
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		http:      httpClient,
		logger:    logger,
		onTrack:   onTrack,
		onState:   onState,
		reconnect: make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconnect resets the failure counter and wakes the run loop
// immediately instead of waiting out the current backoff delay.
func (c *Client) Reconnect() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

// Disconnect stops the run loop. Idempotent.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Run drives the feed until the context is cancelled or Disconnect is
// called. Hitting the failure cap does not end the run: the client stays
// in the error state and resumes when Reconnect is called.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer c.setState(StateDisconnected)

	if c.cfg.StreamURL != "" {
		return c.runStream(ctx)
	}
	if c.cfg.PollURL != "" {
		return c.runPoll(ctx)
	}
	return errors.New("nowplaying: no stream or poll URL configured")
}

func (c *Client) runStream(ctx context.Context) error {
	for {
		c.setState(StateConnecting)
		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.setState(StateError)
		c.logger.Warn("nowplaying: stream dropped", "error", err)

		// Keep the fallback endpoint covering the outage while we
		// wait to retry the stream. Polling stops as soon as the
		// stream is attempted again, so the two sources never
		// overlap.
		pollCtx, stopPoll := context.WithCancel(ctx)
		var pollDone chan struct{}
		if c.cfg.PollURL != "" {
			pollDone = make(chan struct{})
			go func() {
				defer close(pollDone)
				c.pollWhileDown(pollCtx)
			}()
		}
		err = c.waitRetry(ctx)
		stopPoll()
		if pollDone != nil {
			<-pollDone
		}
		if err != nil {
			return err
		}
	}
}

// pollWhileDown polls the fallback endpoint for as long as the stream
// is down. Poll failures are logged but do not touch the connection
// state or the failure counter; those belong to the stream.
func (c *Client) pollWhileDown(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug("nowplaying: fallback poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) runPoll(ctx context.Context) error {
	c.setState(StateConnecting)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.setState(StateError)
			c.logger.Warn("nowplaying: poll failed", "error", err)
			if err := c.waitRetry(ctx); err != nil {
				return err
			}
			c.setState(StateConnecting)
			continue
		}
		c.resetAttempts()
		c.setState(StateConnected)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.reconnect:
		case <-ticker.C:
		}
	}
}

// waitRetry sleeps out the backoff ladder rung for the current attempt.
// Once the cap is hit it stops scheduling retries and waits for a
// manual reconnect, however long that takes.
func (c *Client) waitRetry(ctx context.Context) error {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	if attempt > c.cfg.MaxAttempts {
		c.logger.Warn("nowplaying: pausing retries until manual reconnect", "attempts", attempt-1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.reconnect:
			return nil
		}
	}

	rung := attempt - 1
	if rung >= len(c.cfg.Backoff) {
		rung = len(c.cfg.Backoff) - 1
	}
	delay := c.cfg.Backoff[rung]
	c.logger.Debug("nowplaying: retrying", "attempt", attempt, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.reconnect:
		return nil
	case <-timer.C:
		return nil
	}
}

func (c *Client) resetAttempts() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
}

// setState is the single transition path; every observer callback fires
// from here, in order, and only on actual changes.
func (c *Client) setState(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()

	if c.onState != nil {
		c.onState(next)
	}
}

func (c *Client) handleTrack(data []byte) {
	var np model.NowPlaying
	if err := json.Unmarshal(data, &np); err != nil {
		c.logger.Warn("nowplaying: dropping malformed payload", "error", err)
		return
	}
	if c.onTrack != nil {
		c.onTrack(np)
	}
}

func (c *Client) pollOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.PollURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nowplaying: poll status %d", resp.StatusCode)
	}

	var np model.NowPlaying
	if err := json.NewDecoder(resp.Body).Decode(&np); err != nil {
		return fmt.Errorf("nowplaying: decode poll response: %w", err)
	}
	if c.onTrack != nil {
		c.onTrack(np)
	}
	return nil
}
