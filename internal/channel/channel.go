// Package channel wraps one named publish/subscribe topic with ordered,
// non-re-entrant handler dispatch and an idempotent close.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/waveroom/internal/events"
)

// ErrNotReady reports a Send attempted before the subscription reached the
// ready state or after close. Callers treat it as "may not have been
// delivered" and must not block user flow on it.
var ErrNotReady = errors.New("channel: topic not ready")

// Handler is invoked once per received envelope matching its event name.
// Handlers run on a single dispatch goroutine in arrival order; a handler
// must return before the next envelope is delivered.
type Handler func(event string, payload []byte)

type state int

const (
	stateConnecting state = iota
	stateReady
	stateClosed
)

// Topic is an open handle on one named topic.
type Topic struct {
	name string
	pub  events.Publisher

	mu       sync.RWMutex
	st       state
	handlers map[string][]Handler

	cancel    func()
	closeOnce sync.Once
	done      chan struct{}
}

// Open subscribes to the named topic and starts the dispatch loop. The
// returned handle is ready once Open returns without error; handlers may
// be registered before or after envelopes start arriving.
func Open(name string, pub events.Publisher, sub events.Subscriber) (*Topic, error) {
	t := &Topic{
		name:     name,
		pub:      pub,
		st:       stateConnecting,
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
	}

	ch, cancel, err := sub.Subscribe(events.Subject(name))
	if err != nil {
		t.mu.Lock()
		t.st = stateClosed
		t.mu.Unlock()
		close(t.done)
		return nil, fmt.Errorf("opening topic %s: %w", name, err)
	}
	t.cancel = cancel

	t.mu.Lock()
	t.st = stateReady
	t.mu.Unlock()

	go t.dispatch(ch)
	return t, nil
}

// Name returns the topic name this handle is bound to.
func (t *Topic) Name() string { return t.name }

// On registers fn for envelopes with the given event name.
func (t *Topic) On(event string, fn Handler) {
	t.mu.Lock()
	t.handlers[event] = append(t.handlers[event], fn)
	t.mu.Unlock()
}

// Send publishes an envelope on the topic. A send before the handle is
// ready, or after close, is reported as ErrNotReady after logging a
// warning; delivery is best-effort either way.
func (t *Topic) Send(ctx context.Context, event string, payload any) error {
	t.mu.RLock()
	ready := t.st == stateReady
	t.mu.RUnlock()
	if !ready {
		slog.Warn("channel: send on topic that is not ready", "topic", t.name, "event", event)
		return ErrNotReady
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	env := events.Envelope{Topic: t.name, Event: event, Payload: data}
	if err := t.pub.Publish(ctx, events.Subject(t.name), env); err != nil {
		return fmt.Errorf("sending %s on %s: %w", event, t.name, err)
	}
	return nil
}

// Close releases the subscription. It is safe to call multiple times and
// safe to call while a Send is in flight; the publisher is owned by the
// caller and left open.
func (t *Topic) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		prev := t.st
		t.st = stateClosed
		t.mu.Unlock()

		// A failed Open never set cancel; nothing to release then.
		if prev == stateReady && t.cancel != nil {
			t.cancel()
		}
		<-t.done
	})
}

func (t *Topic) dispatch(ch <-chan []byte) {
	defer close(t.done)
	for raw := range ch {
		var env events.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("channel: dropping malformed envelope", "topic", t.name, "error", err)
			continue
		}

		t.mu.RLock()
		fns := make([]Handler, len(t.handlers[env.Event]))
		copy(fns, t.handlers[env.Event])
		t.mu.RUnlock()

		for _, fn := range fns {
			fn(env.Event, env.Payload)
		}
	}
}
