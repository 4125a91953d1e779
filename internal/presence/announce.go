package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
)

// Broadcaster publishes presence announcements to the listeners topic.
// Satisfied by *channel.Topic.
type Broadcaster interface {
	Send(ctx context.Context, event string, payload any) error
}

// Announcer emits this client's heartbeat on the listeners topic and a
// leaving announcement on shutdown.
type Announcer struct {
	bcast       Broadcaster
	key         string
	displayName string
	interval    time.Duration
	logger      *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewAnnouncer(bcast Broadcaster, key, displayName string, interval time.Duration, logger *slog.Logger) *Announcer {
	if interval <= 0 {
		interval = HeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{
		bcast:       bcast,
		key:         key,
		displayName: displayName,
		interval:    interval,
		logger:      logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start sends an immediate announcement, then heartbeats until Stop.
func (a *Announcer) Start(ctx context.Context) {
	go a.loop(ctx)
}

// Stop ends the heartbeat loop and sends a leaving announcement.
func (a *Announcer) Stop(ctx context.Context) {
	a.stopOnce.Do(func() {
		close(a.stop)
		<-a.done
		a.send(ctx, true)
	})
}

func (a *Announcer) loop(ctx context.Context) {
	defer close(a.done)

	a.send(ctx, false)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.send(ctx, false)
		}
	}
}

func (a *Announcer) send(ctx context.Context, leaving bool) {
	err := a.bcast.Send(ctx, events.EventPresence, events.Presence{
		Key:         a.key,
		DisplayName: a.displayName,
		Timestamp:   time.Now(),
		Leaving:     leaving,
	})
	if err != nil {
		a.logger.Debug("presence: announcement failed", "leaving", leaving, "error", err)
	}
}
