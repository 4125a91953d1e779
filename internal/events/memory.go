package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryBus is an in-process Publisher/Subscriber pair. It backs tests and
// single-process deployments where no broker is configured; delivery
// semantics mirror the NATS implementation (buffered, drop-on-full,
// once-guarded cancel).
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	pattern string
	ch      chan []byte
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("publishing to %s: bus closed", subject)
	}
	for s := range b.subs {
		if matchSubject(s.pattern, subject) {
			select {
			case s.ch <- data:
			default:
				// Drop if the subscriber is slow, like the broker would.
			}
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject string) (<-chan []byte, func(), error) {
	s := &memorySub{pattern: subject, ch: make(chan []byte, 64)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, fmt.Errorf("subscribing to %s: bus closed", subject)
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			for {
				select {
				case <-s.ch:
				default:
					close(s.ch)
					return
				}
			}
		})
	}
	return s.ch, cancel, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// matchSubject matches a dot-separated subject against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard (NATS-style).
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	patParts := strings.Split(pattern, ".")
	subParts := strings.Split(subject, ".")

	for i, pp := range patParts {
		if pp == ">" {
			// ">" matches one or more remaining segments.
			return i < len(subParts)
		}
		if i >= len(subParts) {
			return false
		}
		if pp != "*" && pp != subParts[i] {
			return false
		}
	}

	return len(patParts) == len(subParts)
}
