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

type pendingMessage struct {
	body     string
	inflight bool
}

// ChatManager drives optimistic message submission against a MessageLog.
type ChatManager struct {
	log    *reconcile.MessageLog
	store  store.Store
	bcast  Broadcaster
	author model.Author
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingMessage
	wg      sync.WaitGroup
}

func NewChatManager(log *reconcile.MessageLog, st store.Store, bcast Broadcaster, author model.Author, logger *slog.Logger) *ChatManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatManager{
		log:     log,
		store:   st,
		bcast:   bcast,
		author:  author,
		logger:  logger,
		pending: make(map[string]*pendingMessage),
	}
}

// Submit validates the body, inserts an optimistic placeholder, and
// starts the durable write. The placeholder token is returned
// immediately; the write resolves in the background.
func (m *ChatManager) Submit(ctx context.Context, body string) (string, error) {
	body, err := model.ValidateMessageBody(body)
	if err != nil {
		return "", err
	}
	token, err := idgen.Generate(idgen.PrefixPlaceholder)
	if err != nil {
		return "", err
	}

	m.log.Insert(&model.Message{
		ID:        token,
		Author:    m.author,
		Body:      body,
		CreatedAt: time.Now(),
		Stage:     model.StageOptimistic,
	})

	m.mu.Lock()
	m.pending[token] = &pendingMessage{body: body, inflight: true}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolve(context.WithoutCancel(ctx), token, body)
	}()
	return token, nil
}

// Retry re-attempts the write behind a failed placeholder. The entry
// returns to the optimistic stage while the write is in flight.
func (m *ChatManager) Retry(ctx context.Context, token string) error {
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
	body := p.body
	m.mu.Unlock()

	m.log.Replace(token, &model.Message{
		ID:        token,
		Author:    m.author,
		Body:      body,
		CreatedAt: time.Now(),
		Stage:     model.StageOptimistic,
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolve(context.WithoutCancel(ctx), token, body)
	}()
	return nil
}

func (m *ChatManager) resolve(ctx context.Context, token, body string) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	id, err := idgen.Generate(idgen.PrefixMessage)
	if err != nil {
		m.fail(token, err)
		return
	}
	msg := &model.Message{
		ID:     id,
		Author: m.author,
		Body:   body,
		Stage:  model.StageConfirmed,
	}
	if err := m.store.CreateMessage(ctx, msg); err != nil {
		m.fail(token, err)
		return
	}

	m.log.Replace(token, msg)
	m.mu.Lock()
	delete(m.pending, token)
	m.mu.Unlock()

	if err := m.bcast.Send(ctx, events.EventNewMessage, events.NewMessage{Message: msg}); err != nil {
		m.logger.Warn("chat: broadcast failed", "id", msg.ID, "error", err)
	}
}

func (m *ChatManager) fail(token string, err error) {
	m.logger.Warn("chat: message write failed", "token", token, "error", err)
	m.log.MarkFailed(token)
	m.mu.Lock()
	if p, ok := m.pending[token]; ok {
		p.inflight = false
	}
	m.mu.Unlock()
}

// Flush blocks until all in-flight writes have resolved.
func (m *ChatManager) Flush() {
	m.wg.Wait()
}
