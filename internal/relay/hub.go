package relay

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringSize is the number of recent events kept for Last-Event-ID
	// reconnection support.
	ringSize = 1000

	// keepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	keepaliveInterval = 15 * time.Second
)

// streamEvent is a single event stored in the ring buffer and sent to
// stream clients.
type streamEvent struct {
	ID    uint64 // monotonically increasing sequence number
	Event string
	Data  []byte // JSON-encoded payload
}

// hub fans events out to connected stream clients and keeps a ring
// buffer for replay on reconnection.
type hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	nextID  atomic.Uint64

	ringMu  sync.RWMutex
	ring    [ringSize]streamEvent
	ringPos int
	ringLen int

	metrics *Metrics
}

type hubClient struct {
	ch chan *streamEvent
}

func newHub(metrics *Metrics) *hub {
	return &hub{
		clients: make(map[*hubClient]struct{}),
		metrics: metrics,
	}
}

// broadcast stores the event in the ring and fans it out. Slow clients
// miss events rather than blocking the publisher.
func (h *hub) broadcast(event string, data []byte) {
	evt := &streamEvent{
		ID:    h.nextID.Add(1),
		Event: event,
		Data:  data,
	}

	h.ringMu.Lock()
	h.ring[h.ringPos] = *evt
	h.ringPos = (h.ringPos + 1) % ringSize
	if h.ringLen < ringSize {
		h.ringLen++
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.ch <- evt:
		default:
			h.metrics.broadcastDrops.Inc()
		}
	}
}

func (h *hub) subscribe() *hubClient {
	c := &hubClient{ch: make(chan *streamEvent, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) unsubscribe(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// replaySince returns buffered events with an ID greater than afterID,
// oldest first.
func (h *hub) replaySince(afterID uint64) []streamEvent {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()

	out := make([]streamEvent, 0, h.ringLen)
	start := h.ringPos - h.ringLen
	for i := 0; i < h.ringLen; i++ {
		idx := (start + i + ringSize) % ringSize
		if h.ring[idx].ID > afterID {
			out = append(out, h.ring[idx])
		}
	}
	return out
}

// serveStream handles one SSE consumer: replay, live fan-out, and
// keepalives until the client goes away.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var afterID uint64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			afterID = id
		}
	}

	client := s.hub.subscribe()
	defer s.hub.unsubscribe(client)
	s.metrics.IncSSEClients(1)
	defer s.metrics.IncSSEClients(-1)

	for _, evt := range s.hub.replaySince(afterID) {
		writeStreamEvent(w, &evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt := <-client.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt *streamEvent) {
	fmt.Fprintf(w, "id: %d\n", evt.ID)
	if evt.Event != "" {
		fmt.Fprintf(w, "event: %s\n", evt.Event)
	}
	fmt.Fprintf(w, "data: %s\n\n", evt.Data)
}
