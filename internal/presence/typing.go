package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/model"
)

type typingState struct {
	displayName string
	seen        time.Time
}

// TypingTracker tracks who is composing a message right now. Signals
// expire after the typing window; expiry is applied lazily on read, so
// no reaper is needed. The tracker never reports its own identity.
type TypingTracker struct {
	mu      sync.Mutex
	selfKey string
	window  time.Duration
	active  map[string]*typingState
}

func NewTypingTracker(selfKey string) *TypingTracker {
	return &TypingTracker{
		selfKey: selfKey,
		window:  model.TypingWindow,
		active:  make(map[string]*typingState),
	}
}

// Record notes a typing signal. Self-originated signals are ignored.
func (t *TypingTracker) Record(sig events.TypingSignal) {
	if sig.Key == "" || sig.Key == t.selfKey {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.active[sig.Key]
	if !ok {
		state = &typingState{}
		t.active[sig.Key] = state
	}
	state.displayName = sig.DisplayName
	state.seen = time.Now()
}

// Active returns the display names of everyone typing within the
// window, sorted for stable rendering.
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.window)
	names := make([]string, 0, len(t.active))
	for key, state := range t.active {
		if state.seen.Before(cutoff) {
			delete(t.active, key)
			continue
		}
		names = append(names, state.displayName)
	}
	sort.Strings(names)
	return names
}
