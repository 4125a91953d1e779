package optimistic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/idgen"
	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/reconcile"
	"github.com/alfredjeanlab/waveroom/internal/store"
)

type pendingRequest struct {
	title    string
	artist   string
	inflight bool
}

// QueueManager drives optimistic song-request submission against a
// RequestQueue. Same placeholder lifecycle as ChatManager; the only
// difference is the payload shape and the topic event.
type QueueManager struct {
	queue  *reconcile.RequestQueue
	store  store.Store
	bcast  Broadcaster
	author model.Author
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest
	wg      sync.WaitGroup
}

func NewQueueManager(queue *reconcile.RequestQueue, st store.Store, bcast Broadcaster, author model.Author, logger *slog.Logger) *QueueManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueManager{
		queue:   queue,
		store:   st,
		bcast:   bcast,
		author:  author,
		logger:  logger,
		pending: make(map[string]*pendingRequest),
	}
}

// Submit validates the fields, inserts an optimistic placeholder with
// zero votes, and starts the durable write.
func (m *QueueManager) Submit(ctx context.Context, title, artist string) (string, error) {
	title, artist, err := model.ValidateRequestFields(title, artist)
	if err != nil {
		return "", err
	}
	token, err := idgen.Generate(idgen.PrefixPlaceholder)
	if err != nil {
		return "", err
	}

	m.queue.Insert(&model.Request{
		ID:        token,
		Author:    m.author,
		Title:     title,
		Artist:    artist,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
		Stage:     model.StageOptimistic,
	})

	m.mu.Lock()
	m.pending[token] = &pendingRequest{title: title, artist: artist, inflight: true}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolve(context.WithoutCancel(ctx), token, title, artist)
	}()
	return token, nil
}

// Retry re-attempts the write behind a failed placeholder.
func (m *QueueManager) Retry(ctx context.Context, token string) error {
	m.mu.Lock()
	p, ok := m.pending[token]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownToken
	}
	if p.inflight {
		m.mu.Unlock()
		return ErrWriteInFlight
	}
	p.inflight = true
	title, artist := p.title, p.artist
	m.mu.Unlock()

	m.queue.Replace(token, &model.Request{
		ID:        token,
		Author:    m.author,
		Title:     title,
		Artist:    artist,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
		Stage:     model.StageOptimistic,
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolve(context.WithoutCancel(ctx), token, title, artist)
	}()
	return nil
}

func (m *QueueManager) resolve(ctx context.Context, token, title, artist string) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	id, err := idgen.Generate(idgen.PrefixRequest)
	if err != nil {
		m.fail(token, err)
		return
	}
	req := &model.Request{
		ID:     id,
		Author: m.author,
		Title:  title,
		Artist: artist,
		Status: model.StatusPending,
		Stage:  model.StageConfirmed,
	}
	if err := m.store.CreateRequest(ctx, req); err != nil {
		m.fail(token, err)
		return
	}

	m.queue.Replace(token, req)
	m.mu.Lock()
	delete(m.pending, token)
	m.mu.Unlock()

	if err := m.bcast.Send(ctx, events.EventNewRequest, events.NewRequest{Request: req}); err != nil {
		m.logger.Warn("queue: broadcast failed", "id", req.ID, "error", err)
	}
}

func (m *QueueManager) fail(token string, err error) {
	m.logger.Warn("queue: request write failed", "token", token, "error", err)
	m.queue.MarkFailed(token)
	m.mu.Lock()
	if p, ok := m.pending[token]; ok {
		p.inflight = false
	}
	m.mu.Unlock()
}

// Flush blocks until all in-flight writes have resolved.
func (m *QueueManager) Flush() {
	m.wg.Wait()
}
