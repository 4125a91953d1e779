// Package presence tracks who currently holds the room open.
//
// Each connected client announces itself on the listeners topic at a
// fixed heartbeat interval. The Tracker maintains an in-memory roster
// from those announcements; a background reaper goroutine drops
// listeners whose heartbeats stop. A leaving announcement removes the
// listener immediately, without waiting for the reaper.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
)

// HeartbeatInterval is how often a connected client announces itself.
const HeartbeatInterval = 10 * time.Second

// Entry is one listener in the roster snapshot.
type Entry struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// ReaperConfig configures the background idle-listener reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a listener may go without a heartbeat
	// before being dropped. Default: 30 seconds.
	IdleThreshold time.Duration

	// SweepInterval is how often the reaper scans the roster.
	// Default: 10 seconds.
	SweepInterval time.Duration

	// OnChange is called with the new listener count whenever the
	// roster size changes. Called outside the lock.
	OnChange func(count int)
}

type listenerState struct {
	displayName string
	firstSeen   time.Time
	lastSeen    time.Time
}

// Tracker maintains an in-memory roster of connected listeners.
type Tracker struct {
	mu        sync.RWMutex
	listeners map[string]*listenerState

	reaperStop chan struct{}
	reaperDone chan struct{}
	onChange   func(count int)
}

func New() *Tracker {
	return &Tracker{listeners: make(map[string]*listenerState)}
}

// Record updates the roster from a presence announcement. A leaving
// announcement removes the listener immediately.
func (t *Tracker) Record(sig events.Presence) {
	if sig.Key == "" {
		return
	}

	t.mu.Lock()
	before := len(t.listeners)
	if sig.Leaving {
		delete(t.listeners, sig.Key)
	} else {
		state, ok := t.listeners[sig.Key]
		if !ok {
			state = &listenerState{firstSeen: time.Now()}
			t.listeners[sig.Key] = state
		}
		state.displayName = sig.DisplayName
		state.lastSeen = time.Now()
	}
	after := len(t.listeners)
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil && after != before {
		onChange(after)
	}
}

// Count returns the number of listeners currently in the roster.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners)
}

// Roster returns a snapshot sorted by most recently active.
func (t *Tracker) Roster() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, len(t.listeners))
	for key, state := range t.listeners {
		entries = append(entries, Entry{
			Key:         key,
			DisplayName: state.displayName,
			FirstSeen:   state.firstSeen,
			LastSeen:    state.lastSeen,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches a background goroutine that drops listeners
// whose heartbeats have stopped. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 30 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Second
	}

	t.mu.Lock()
	t.onChange = cfg.OnChange
	t.mu.Unlock()

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := time.Now()

	t.mu.Lock()
	before := len(t.listeners)
	for key, state := range t.listeners {
		if now.Sub(state.lastSeen) > cfg.IdleThreshold {
			slog.Debug("presence: reaping idle listener", "key", key,
				"idle", now.Sub(state.lastSeen).Round(time.Second))
			delete(t.listeners, key)
		}
	}
	after := len(t.listeners)
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil && after != before {
		onChange(after)
	}
}
