// Package relay fronts the station's radio server for web and CLI
// clients. It proxies now-playing and history reads, polls the radio
// server and rebroadcasts track changes, bridges broker events onto a
// fan-out SSE stream, and serves health and metrics endpoints.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/model"
)

// Config configures the relay server.
type Config struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string

	// UpstreamURL is the base URL of the radio server.
	UpstreamURL string

	// PollInterval is the upstream now-playing poll cadence.
	// Default: 10 seconds.
	PollInterval time.Duration

	// RateRPS and RateBurst bound per-IP request rates. Zero disables
	// rate limiting.
	RateRPS   int
	RateBurst int

	Logger *slog.Logger
}

// Server is the relay HTTP server.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	client  *http.Client
	hub     *hub
	metrics *Metrics
	limiter *ipRateLimiter
	mux     *http.ServeMux

	lastTrack trackCache
}

// trackCache caches the most recent upstream snapshot.
type trackCache struct {
	mu  sync.Mutex
	np  *model.NowPlaying
	raw []byte
}

func New(cfg Config) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		client:  &http.Client{Timeout: 15 * time.Second},
		metrics: newMetrics(),
		limiter: newIPRateLimiter(cfg.RateRPS, cfg.RateBurst),
		mux:     http.NewServeMux(),
	}
	s.hub = newHub(s.metrics)

	s.mux.Handle("GET /v1/nowplaying", s.withMiddleware("/v1/nowplaying", http.HandlerFunc(s.handleNowPlaying)))
	s.mux.Handle("GET /v1/history", s.withMiddleware("/v1/history", http.HandlerFunc(s.handleHistory)))
	s.mux.Handle("GET /v1/stream", s.withMiddleware("/v1/stream", http.HandlerFunc(s.serveStream)))
	s.mux.Handle("GET /v1/health", s.withMiddleware("/v1/health", http.HandlerFunc(s.handleHealth)))
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	return s
}

// Handler returns the relay's HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves HTTP and polls the upstream until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pumpUpstream(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay: listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// AttachBus bridges broker events onto the SSE stream. The returned
// cancel function detaches the bridge.
func (s *Server) AttachBus(sub events.Subscriber) (func(), error) {
	ch, cancel, err := sub.Subscribe(events.SubjectPrefix + ">")
	if err != nil {
		return nil, err
	}
	go func() {
		for raw := range ch {
			var env events.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				s.logger.Warn("relay: dropping malformed envelope", "error", err)
				continue
			}
			s.hub.broadcast(env.Event, raw)
		}
	}()
	return cancel, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleNowPlaying serves the cached upstream snapshot when the pump
// has one, and proxies through otherwise.
func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	if raw := s.cachedTrack(); raw != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
		return
	}
	s.proxyUpstream(w, r, "/api/nowplaying", "nowplaying")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.proxyUpstream(w, r, "/api/history", "history")
}

// proxyUpstream forwards a read to the radio server. Any upstream
// failure, including a non-2xx status, surfaces as 502 so clients can
// tell relay errors from radio-server errors.
func (s *Server) proxyUpstream(w http.ResponseWriter, r *http.Request, path, endpoint string) {
	url := strings.TrimRight(s.cfg.UpstreamURL, "/") + path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		http.Error(w, "bad upstream url", http.StatusInternalServerError)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.upstreamErrors.WithLabelValues(endpoint).Inc()
		s.logger.Warn("relay: upstream unreachable", "endpoint", endpoint, "error", err)
		http.Error(w, "radio server unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.metrics.upstreamErrors.WithLabelValues(endpoint).Inc()
		s.logger.Warn("relay: upstream error", "endpoint", endpoint, "status", resp.StatusCode)
		http.Error(w, "radio server error", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("relay: proxy copy interrupted", "endpoint", endpoint, "error", err)
	}
}

// pumpUpstream polls the radio server and broadcasts track changes onto
// the stream. Errors are logged and retried on the next tick.
func (s *Server) pumpUpstream(ctx context.Context) {
	if s.cfg.UpstreamURL == "" {
		return
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.pollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.metrics.upstreamErrors.WithLabelValues("pump").Inc()
			s.logger.Warn("relay: upstream poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pollOnce(ctx context.Context) error {
	url := strings.TrimRight(s.cfg.UpstreamURL, "/") + "/api/nowplaying"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var np model.NowPlaying
	if err := json.Unmarshal(raw, &np); err != nil {
		return fmt.Errorf("decode upstream snapshot: %w", err)
	}

	if s.storeTrack(&np, raw) {
		payload, err := json.Marshal(events.Envelope{
			Topic:   events.TopicNowPlaying,
			Event:   events.EventTrackUpdate,
			Payload: raw,
		})
		if err != nil {
			return err
		}
		s.hub.broadcast(events.EventTrackUpdate, payload)
	}
	return nil
}

// cachedTrack returns the raw JSON of the last upstream snapshot, or
// nil before the first successful poll.
func (s *Server) cachedTrack() []byte {
	s.lastTrack.mu.Lock()
	defer s.lastTrack.mu.Unlock()
	return s.lastTrack.raw
}

// storeTrack updates the cache and reports whether the snapshot changed.
func (s *Server) storeTrack(np *model.NowPlaying, raw []byte) bool {
	s.lastTrack.mu.Lock()
	defer s.lastTrack.mu.Unlock()
	if bytes.Equal(s.lastTrack.raw, raw) {
		return false
	}
	s.lastTrack.np = np
	s.lastTrack.raw = raw
	return true
}
