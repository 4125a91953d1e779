package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
)

func TestRecord_BasicTracking(t *testing.T) {
	tr := New()

	tr.Record(events.Presence{Key: "anon:a1", DisplayName: "Neon Fox", Timestamp: time.Now()})

	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1", tr.Count())
	}
	roster := tr.Roster()
	if len(roster) != 1 {
		t.Fatalf("roster len = %d, want 1", len(roster))
	}
	if roster[0].Key != "anon:a1" || roster[0].DisplayName != "Neon Fox" {
		t.Errorf("entry = %+v", roster[0])
	}
}

func TestRecord_HeartbeatUpdatesExisting(t *testing.T) {
	tr := New()

	tr.Record(events.Presence{Key: "anon:a1", DisplayName: "Neon Fox"})
	first := tr.Roster()[0]

	tr.Record(events.Presence{Key: "anon:a1", DisplayName: "Renamed Fox"})

	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1", tr.Count())
	}
	e := tr.Roster()[0]
	if e.DisplayName != "Renamed Fox" {
		t.Errorf("display name = %q", e.DisplayName)
	}
	if e.FirstSeen != first.FirstSeen {
		t.Error("first seen must survive heartbeats")
	}
	if e.LastSeen.Before(first.LastSeen) {
		t.Error("last seen went backwards")
	}
}

func TestRecord_LeavingRemovesImmediately(t *testing.T) {
	tr := New()

	tr.Record(events.Presence{Key: "anon:a1", DisplayName: "Neon Fox"})
	tr.Record(events.Presence{Key: "user:dj", DisplayName: "DJ Maria"})
	tr.Record(events.Presence{Key: "anon:a1", Leaving: true})

	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1", tr.Count())
	}
	if tr.Roster()[0].Key != "user:dj" {
		t.Errorf("remaining = %v", tr.Roster())
	}
}

func TestRecord_EmptyKeyIgnored(t *testing.T) {
	tr := New()
	tr.Record(events.Presence{DisplayName: "ghost"})
	if tr.Count() != 0 {
		t.Errorf("count = %d, want 0", tr.Count())
	}
}

func TestRoster_SortedByRecency(t *testing.T) {
	tr := New()
	tr.Record(events.Presence{Key: "anon:a1", DisplayName: "First"})
	time.Sleep(2 * time.Millisecond)
	tr.Record(events.Presence{Key: "anon:a2", DisplayName: "Second"})

	roster := tr.Roster()
	if roster[0].Key != "anon:a2" {
		t.Errorf("roster = %v, want most recent first", roster)
	}
}

func TestReaper_DropsIdleListeners(t *testing.T) {
	tr := New()

	var mu sync.Mutex
	var counts []int
	tr.StartReaper(&ReaperConfig{
		IdleThreshold: 30 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
		OnChange: func(n int) {
			mu.Lock()
			counts = append(counts, n)
			mu.Unlock()
		},
	})
	defer tr.Stop()

	tr.Record(events.Presence{Key: "anon:a1", DisplayName: "Neon Fox"})

	deadline := time.After(2 * time.Second)
	for tr.Count() != 0 {
		select {
		case <-deadline:
			t.Fatal("idle listener never reaped")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(counts) == 0 || counts[len(counts)-1] != 0 {
		t.Errorf("OnChange calls = %v, want trailing 0", counts)
	}
}

func TestReaper_HeartbeatKeepsListenerAlive(t *testing.T) {
	tr := New()
	tr.StartReaper(&ReaperConfig{
		IdleThreshold: 50 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	defer tr.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			tr.Record(events.Presence{Key: "anon:a1", DisplayName: "Neon Fox"})
			time.Sleep(15 * time.Millisecond)
		}
	}()
	<-done

	if tr.Count() != 1 {
		t.Errorf("count = %d, want heartbeating listener kept", tr.Count())
	}
}

type captureBroadcaster struct {
	mu   sync.Mutex
	sigs []events.Presence
}

func (b *captureBroadcaster) Send(_ context.Context, _ string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sigs = append(b.sigs, payload.(events.Presence))
	return nil
}

func (b *captureBroadcaster) all() []events.Presence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Presence(nil), b.sigs...)
}

func TestAnnouncer_HeartbeatsAndLeaving(t *testing.T) {
	bcast := &captureBroadcaster{}
	a := NewAnnouncer(bcast, "anon:a1", "Neon Fox", 10*time.Millisecond, nil)

	a.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for len(bcast.all()) < 3 {
		select {
		case <-deadline:
			t.Fatal("heartbeats never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
	a.Stop(context.Background())

	sigs := bcast.all()
	last := sigs[len(sigs)-1]
	if !last.Leaving {
		t.Error("final announcement must be leaving")
	}
	for _, sig := range sigs[:len(sigs)-1] {
		if sig.Leaving {
			t.Fatal("leaving announced before Stop")
		}
		if sig.Key != "anon:a1" || sig.DisplayName != "Neon Fox" {
			t.Fatalf("announcement = %+v", sig)
		}
	}

	// Stop is idempotent.
	a.Stop(context.Background())
	if got := len(bcast.all()); got != len(sigs) {
		t.Errorf("announcements after second Stop = %d, want %d", got, len(sigs))
	}
}

func TestTyping_WindowAndSelfExclusion(t *testing.T) {
	tt := NewTypingTracker("anon:self")

	tt.Record(events.TypingSignal{Key: "anon:self", DisplayName: "Me"})
	tt.Record(events.TypingSignal{Key: "anon:a2", DisplayName: "Hazy Echo"})
	tt.Record(events.TypingSignal{Key: "user:dj", DisplayName: "DJ Maria"})

	got := tt.Active()
	if len(got) != 2 || got[0] != "DJ Maria" || got[1] != "Hazy Echo" {
		t.Errorf("active = %v, want sorted others only", got)
	}
}

func TestTyping_SignalsExpire(t *testing.T) {
	tt := NewTypingTracker("anon:self")
	tt.window = 20 * time.Millisecond

	tt.Record(events.TypingSignal{Key: "anon:a2", DisplayName: "Hazy Echo"})
	if got := tt.Active(); len(got) != 1 {
		t.Fatalf("active = %v, want 1", got)
	}

	time.Sleep(30 * time.Millisecond)
	if got := tt.Active(); len(got) != 0 {
		t.Errorf("active after expiry = %v, want empty", got)
	}

	// A fresh signal restarts the window.
	tt.Record(events.TypingSignal{Key: "anon:a2", DisplayName: "Hazy Echo"})
	if got := tt.Active(); len(got) != 1 {
		t.Errorf("active after re-signal = %v, want 1", got)
	}
}
