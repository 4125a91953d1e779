package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/alfredjeanlab/waveroom/internal/events"
)

func openMemoryTopic(t *testing.T, name string) (*Topic, *events.MemoryBus) {
	t.Helper()
	bus := events.NewMemoryBus()
	topic, err := Open(name, bus, bus)
	if err != nil {
		t.Fatalf("Open(%q): %v", name, err)
	}
	t.Cleanup(topic.Close)
	return topic, bus
}

func TestTopic_SendAndReceive(t *testing.T) {
	topic, _ := openMemoryTopic(t, events.TopicChatRoom)

	got := make(chan string, 1)
	topic.On(events.EventNewMessage, func(event string, payload []byte) {
		var vc events.VoteChange
		_ = json.Unmarshal(payload, &vc)
		got <- vc.RequestID
	})

	if err := topic.Send(context.Background(), events.EventNewMessage, events.VoteChange{RequestID: "req-1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case id := <-got:
		if id != "req-1" {
			t.Errorf("payload = %q, want req-1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestTopic_HandlersRunInArrivalOrder(t *testing.T) {
	topic, _ := openMemoryTopic(t, events.TopicSongRequests)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	topic.On(events.EventVoteChange, func(event string, payload []byte) {
		var vc events.VoteChange
		_ = json.Unmarshal(payload, &vc)
		mu.Lock()
		order = append(order, vc.RequestID)
		n := len(order)
		mu.Unlock()
		if n == 5 {
			close(done)
		}
	})

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := topic.Send(context.Background(), events.EventVoteChange, events.VoteChange{RequestID: id}); err != nil {
			t.Fatalf("Send(%s): %v", id, err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handlers")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "b", "c", "d", "e"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTopic_EventNameFiltering(t *testing.T) {
	topic, _ := openMemoryTopic(t, events.TopicSongRequests)

	wrong := make(chan struct{}, 1)
	topic.On(events.EventStatusChange, func(string, []byte) {
		wrong <- struct{}{}
	})

	if err := topic.Send(context.Background(), events.EventVoteChange, events.VoteChange{RequestID: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-wrong:
		t.Fatal("handler invoked for a different event name")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTopic_SendAfterClose(t *testing.T) {
	bus := events.NewMemoryBus()
	topic, err := Open(events.TopicChatRoom, bus, bus)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	topic.Close()

	err = topic.Send(context.Background(), events.EventNewMessage, events.NewMessage{})
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Send after close = %v, want ErrNotReady", err)
	}
}

func TestTopic_CloseIdempotent(t *testing.T) {
	bus := events.NewMemoryBus()
	topic, err := Open(events.TopicChatRoom, bus, bus)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	topic.Close()
	topic.Close() // must not panic or block
}

func TestTopic_CloseDuringSends(t *testing.T) {
	bus := events.NewMemoryBus()
	topic, err := Open(events.TopicChatRoom, bus, bus)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = topic.Send(context.Background(), events.EventNewMessage, events.NewMessage{})
		}
	}()

	topic.Close()
	<-done
}

func TestTopic_MalformedEnvelopeDropped(t *testing.T) {
	topic, bus := openMemoryTopic(t, events.TopicChatRoom)

	invoked := make(chan struct{}, 1)
	topic.On(events.EventNewMessage, func(string, []byte) {
		invoked <- struct{}{}
	})

	// Raw bytes that are not a valid envelope.
	if err := bus.Publish(context.Background(), events.Subject(events.TopicChatRoom), "not-an-envelope"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-invoked:
		t.Fatal("handler invoked for malformed envelope")
	case <-time.After(50 * time.Millisecond):
	}

	// The dispatch loop must survive and keep delivering.
	if err := topic.Send(context.Background(), events.EventNewMessage, events.NewMessage{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("dispatch loop did not survive malformed envelope")
	}
}

func TestTopic_OverNATS(t *testing.T) {
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	url := srv.ClientURL()

	pub, err := events.NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	sub, err := events.NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("subscriber: %v", err)
	}
	defer sub.Close()

	topic, err := Open(events.TopicNowPlaying, pub, sub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer topic.Close()

	got := make(chan struct{}, 1)
	topic.On(events.EventTrackUpdate, func(string, []byte) {
		got <- struct{}{}
	})

	if err := topic.Send(context.Background(), events.EventTrackUpdate, events.TrackUpdate{}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out over NATS")
	}
}
