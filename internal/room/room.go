// Package room composes the engine a connected client runs: identity,
// broker topics, list reconcilers, optimistic write paths, the vote
// coordinator, presence, and the now-playing feed. One Engine is one
// client's live view of one room.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/channel"
	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/nowplaying"
	"github.com/alfredjeanlab/waveroom/internal/optimistic"
	"github.com/alfredjeanlab/waveroom/internal/presence"
	"github.com/alfredjeanlab/waveroom/internal/reconcile"
	"github.com/alfredjeanlab/waveroom/internal/store"
	"github.com/alfredjeanlab/waveroom/internal/votes"
)

// snapshotMessageLimit bounds the initial transcript load. Older
// messages live only in the archive.
const snapshotMessageLimit = 100

// Config wires an Engine's collaborators.
type Config struct {
	Store      store.Store
	Publisher  events.Publisher
	Subscriber events.Subscriber

	// Identity is who this client is in the room.
	Identity model.Author

	// DisplayName is shown in presence and typing rosters.
	DisplayName string

	// SnapshotHorizon filters stale requests out of the initial load.
	// Zero means reconcile.DefaultHorizon.
	SnapshotHorizon time.Duration

	// RefetchInterval re-pulls snapshots to repair any broadcasts lost
	// while partitioned from the broker. Zero disables the refetch.
	RefetchInterval time.Duration

	// HeartbeatInterval overrides the presence heartbeat cadence. Zero
	// means presence.HeartbeatInterval.
	HeartbeatInterval time.Duration

	// Feed, when set, has the engine run a now-playing client against it
	// and keep the latest track snapshot.
	Feed *nowplaying.Config

	Logger *slog.Logger
}

// Engine is a client's live, self-reconciling room state.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	selfKey string

	chatTopic      *channel.Topic
	queueTopic     *channel.Topic
	typingTopic    *channel.Topic
	listenersTopic *channel.Topic

	log      *reconcile.MessageLog
	queue    *reconcile.RequestQueue
	chat     *optimistic.ChatManager
	requests *optimistic.QueueManager
	votes    *votes.Coordinator

	tracker   *presence.Tracker
	typing    *presence.TypingTracker
	announcer *presence.Announcer

	feedClient *nowplaying.Client

	trackMu sync.Mutex
	track   model.NowPlaying
	feed    nowplaying.State

	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Join connects to the room: opens the topics, loads the initial
// snapshots, and starts presence and the feed. Callers own Close.
func Join(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	horizon := cfg.SnapshotHorizon
	if horizon <= 0 {
		horizon = reconcile.DefaultHorizon
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Identity.DisplayName()
	}

	selfKey := cfg.Identity.Key()
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		selfKey: selfKey,
		log:     reconcile.NewMessageLog(selfKey),
		queue:   reconcile.NewRequestQueue(selfKey, horizon),
		tracker: presence.New(),
		typing:  presence.NewTypingTracker(selfKey),
		feed:    nowplaying.StateDisconnected,
	}

	var err error
	if e.chatTopic, err = channel.Open(events.TopicChatRoom, cfg.Publisher, cfg.Subscriber); err != nil {
		return nil, fmt.Errorf("open chat topic: %w", err)
	}
	if e.queueTopic, err = channel.Open(events.TopicSongRequests, cfg.Publisher, cfg.Subscriber); err != nil {
		e.closeTopics()
		return nil, fmt.Errorf("open queue topic: %w", err)
	}
	if e.typingTopic, err = channel.Open(events.TopicChatTyping, cfg.Publisher, cfg.Subscriber); err != nil {
		e.closeTopics()
		return nil, fmt.Errorf("open typing topic: %w", err)
	}
	if e.listenersTopic, err = channel.Open(events.TopicListeners, cfg.Publisher, cfg.Subscriber); err != nil {
		e.closeTopics()
		return nil, fmt.Errorf("open listeners topic: %w", err)
	}
	e.registerHandlers()

	e.chat = optimistic.NewChatManager(e.log, cfg.Store, e.chatTopic, cfg.Identity, logger)
	e.requests = optimistic.NewQueueManager(e.queue, cfg.Store, e.queueTopic, cfg.Identity, logger)
	e.votes = votes.NewCoordinator(e.queue, cfg.Store, e.queueTopic, cfg.Identity, logger)

	if err := e.refetch(ctx); err != nil {
		e.closeTopics()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	e.tracker.StartReaper(nil)
	e.announcer = presence.NewAnnouncer(e.listenersTopic, selfKey, cfg.DisplayName, cfg.HeartbeatInterval, logger)
	e.announcer.Start(runCtx)

	if cfg.Feed != nil {
		e.feedClient = nowplaying.New(*cfg.Feed, e.HandleTrack, e.HandleFeedState)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.feedClient.Run(runCtx); err != nil && runCtx.Err() == nil {
				logger.Warn("room: now-playing feed stopped", "error", err)
			}
		}()
	}

	if cfg.RefetchInterval > 0 {
		e.wg.Add(1)
		go e.refetchLoop(runCtx)
	}

	return e, nil
}

func (e *Engine) registerHandlers() {
	e.chatTopic.On(events.EventNewMessage, func(_ string, payload []byte) {
		var p events.NewMessage
		if err := json.Unmarshal(payload, &p); err != nil || p.Message == nil {
			e.logger.Warn("room: dropping malformed message event", "error", err)
			return
		}
		e.log.ApplyRemote(p.Message)
	})

	e.queueTopic.On(events.EventNewRequest, func(_ string, payload []byte) {
		var p events.NewRequest
		if err := json.Unmarshal(payload, &p); err != nil || p.Request == nil {
			e.logger.Warn("room: dropping malformed request event", "error", err)
			return
		}
		e.queue.ApplyRemote(p.Request)
	})
	e.queueTopic.On(events.EventVoteChange, func(_ string, payload []byte) {
		var p events.VoteChange
		if err := json.Unmarshal(payload, &p); err != nil {
			e.logger.Warn("room: dropping malformed vote event", "error", err)
			return
		}
		e.queue.SetVoteCount(p.RequestID, p.VoteCount, p.VoterKey, p.Voted)
	})
	e.queueTopic.On(events.EventStatusChange, func(_ string, payload []byte) {
		var p events.StatusChange
		if err := json.Unmarshal(payload, &p); err != nil || !p.Status.IsValid() {
			e.logger.Warn("room: dropping malformed status event", "error", err)
			return
		}
		e.queue.SetStatus(p.RequestID, p.Status, p.PlayedAt)
	})

	e.typingTopic.On(events.EventTyping, func(_ string, payload []byte) {
		var p events.TypingSignal
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		e.typing.Record(p)
	})

	e.listenersTopic.On(events.EventPresence, func(_ string, payload []byte) {
		var p events.Presence
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		e.tracker.Record(p)
	})
}

// refetch pulls fresh snapshots and merges them. Placeholders and the
// voted flags survive the merge, so it is safe to run at any time.
func (e *Engine) refetch(ctx context.Context) error {
	msgs, err := e.cfg.Store.ListMessages(ctx, snapshotMessageLimit)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	horizon := time.Now().Add(-e.queue.Horizon())
	reqs, err := e.cfg.Store.ListRequests(ctx, horizon)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	votedIDs, err := e.cfg.Store.VotedRequestIDs(ctx, e.selfKey)
	if err != nil {
		return fmt.Errorf("load vote membership: %w", err)
	}
	voted := make(map[string]bool, len(votedIDs))
	for _, id := range votedIDs {
		voted[id] = true
	}
	for _, r := range reqs {
		if voted[r.ID] {
			r.Voted = true
		}
	}

	e.log.ApplySnapshot(msgs)
	e.queue.ApplySnapshot(reqs)
	return nil
}

func (e *Engine) refetchLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.RefetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.refetch(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("room: snapshot refetch failed", "error", err)
			}
		}
	}
}

// SendMessage submits a chat message optimistically and returns its
// placeholder token.
func (e *Engine) SendMessage(ctx context.Context, body string) (string, error) {
	return e.chat.Submit(ctx, body)
}

// RetryMessage re-attempts a failed message send.
func (e *Engine) RetryMessage(ctx context.Context, token string) error {
	return e.chat.Retry(ctx, token)
}

// SubmitRequest submits a song request optimistically and returns its
// placeholder token.
func (e *Engine) SubmitRequest(ctx context.Context, title, artist string) (string, error) {
	return e.requests.Submit(ctx, title, artist)
}

// RetryRequest re-attempts a failed request submission.
func (e *Engine) RetryRequest(ctx context.Context, token string) error {
	return e.requests.Retry(ctx, token)
}

// ToggleVote flips this identity's vote on a request and returns the
// new optimistic membership state.
func (e *Engine) ToggleVote(ctx context.Context, requestID string) (bool, error) {
	return e.votes.Toggle(ctx, requestID)
}

// SetRequestStatus transitions a request (station-side operation),
// persists it, and broadcasts the change.
func (e *Engine) SetRequestStatus(ctx context.Context, requestID string, status model.RequestStatus) error {
	var playedAt *time.Time
	if status == model.StatusPlayed {
		now := time.Now()
		playedAt = &now
	}
	updated, err := e.cfg.Store.UpdateRequestStatus(ctx, requestID, status, playedAt)
	if err != nil {
		return err
	}
	e.queue.SetStatus(requestID, updated.Status, updated.PlayedAt)
	return e.queueTopic.Send(ctx, events.EventStatusChange, events.StatusChange{
		RequestID: requestID,
		Status:    updated.Status,
		PlayedAt:  updated.PlayedAt,
	})
}

// SetTyping announces that this identity is composing a message.
func (e *Engine) SetTyping(ctx context.Context) error {
	return e.typingTopic.Send(ctx, events.EventTyping, events.TypingSignal{
		Key:         e.selfKey,
		DisplayName: e.cfg.DisplayName,
		Timestamp:   time.Now(),
	})
}

// Flush blocks until every in-flight optimistic write has resolved,
// one way or the other.
func (e *Engine) Flush() {
	e.chat.Flush()
	e.requests.Flush()
	e.votes.Flush()
}

// Messages returns the reconciled transcript, oldest first.
func (e *Engine) Messages() []*model.Message {
	return e.log.Messages()
}

// Requests returns the reconciled queue in display order.
func (e *Engine) Requests() []*model.Request {
	return e.queue.Requests()
}

// Listeners returns the current presence count.
func (e *Engine) Listeners() int {
	return e.tracker.Count()
}

// Roster returns the presence roster, most recent first.
func (e *Engine) Roster() []presence.Entry {
	return e.tracker.Roster()
}

// TypingNow returns who is composing, excluding this identity.
func (e *Engine) TypingNow() []string {
	return e.typing.Active()
}

// NowPlaying returns the latest track snapshot and feed state.
func (e *Engine) NowPlaying() (model.NowPlaying, nowplaying.State) {
	e.trackMu.Lock()
	defer e.trackMu.Unlock()
	return e.track, e.feed
}

// HandleTrack is the Feed's track callback.
func (e *Engine) HandleTrack(np model.NowPlaying) {
	e.trackMu.Lock()
	e.track = np
	e.trackMu.Unlock()
}

// ReconnectFeed asks the now-playing client to retry immediately, even
// after it has given up.
func (e *Engine) ReconnectFeed() {
	if e.feedClient != nil {
		e.feedClient.Reconnect()
	}
}

// HandleFeedState is the Feed's state callback.
func (e *Engine) HandleFeedState(s nowplaying.State) {
	e.trackMu.Lock()
	e.feed = s
	e.trackMu.Unlock()
}

// Close leaves the room: announces departure, flushes in-flight writes,
// and tears down topics and background loops. Idempotent.
func (e *Engine) Close(ctx context.Context) {
	e.closeOnce.Do(func() {
		if e.announcer != nil {
			e.announcer.Stop(ctx)
		}
		e.tracker.Stop()
		if e.feedClient != nil {
			e.feedClient.Disconnect()
		}
		if e.cancel != nil {
			e.cancel()
		}

		e.Flush()
		e.wg.Wait()
		e.closeTopics()
	})
}

func (e *Engine) closeTopics() {
	for _, t := range []*channel.Topic{e.chatTopic, e.queueTopic, e.typingTopic, e.listenersTopic} {
		if t != nil {
			t.Close()
		}
	}
}
