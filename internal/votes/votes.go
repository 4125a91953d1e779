// Package votes coordinates the one-vote-per-listener toggle: flip
// membership optimistically, write through to storage, and broadcast the
// authoritative tally once the write resolves. The storage constraint is
// the source of truth; a duplicate insert or a missing delete means the
// desired state already holds and is absorbed silently.
package votes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/events"
	"github.com/alfredjeanlab/waveroom/internal/idgen"
	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/reconcile"
	"github.com/alfredjeanlab/waveroom/internal/store"
)

const writeTimeout = 10 * time.Second

// ErrUnconfirmed is returned when toggling a vote on a request whose own
// write has not resolved yet.
var ErrUnconfirmed = errors.New("votes: request not confirmed yet")

// ErrUnknownRequest is returned when the request is not in the visible
// queue.
var ErrUnknownRequest = errors.New("votes: unknown request")

// Broadcaster publishes vote tallies to the shared topic. Satisfied by
// *channel.Topic.
type Broadcaster interface {
	Send(ctx context.Context, event string, payload any) error
}

// Coordinator drives vote toggles for one identity against a
// RequestQueue. Toggles on the same request are applied to storage in
// call order; toggles on different requests proceed independently.
type Coordinator struct {
	queue  *reconcile.RequestQueue
	store  store.Store
	bcast  Broadcaster
	voter  model.Author
	logger *slog.Logger

	mu   sync.Mutex
	ops  map[string][]bool // requestID -> queued directions, true = vote
	busy map[string]bool
	wg   sync.WaitGroup
}

func NewCoordinator(queue *reconcile.RequestQueue, st store.Store, bcast Broadcaster, voter model.Author, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		queue:  queue,
		store:  st,
		bcast:  bcast,
		voter:  voter,
		logger: logger,
		ops:    make(map[string][]bool),
		busy:   make(map[string]bool),
	}
}

// Toggle flips this identity's vote on the request. The visible count
// and membership flag change immediately; the durable write and the
// tally broadcast resolve in the background. Returns the new optimistic
// membership state.
func (c *Coordinator) Toggle(ctx context.Context, requestID string) (bool, error) {
	if idgen.IsPlaceholder(requestID) {
		return false, ErrUnconfirmed
	}
	r, ok := c.queue.Get(requestID)
	if !ok {
		return false, ErrUnknownRequest
	}

	voting := !r.Voted
	if voting {
		c.queue.AdjustVote(requestID, 1, true)
	} else {
		c.queue.AdjustVote(requestID, -1, false)
	}

	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	c.ops[requestID] = append(c.ops[requestID], voting)
	if !c.busy[requestID] {
		c.busy[requestID] = true
		c.wg.Add(1)
		go c.drain(ctx, requestID)
	}
	c.mu.Unlock()
	return voting, nil
}

// drain applies queued toggles for one request in FIFO order.
func (c *Coordinator) drain(ctx context.Context, requestID string) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		queue := c.ops[requestID]
		if len(queue) == 0 {
			c.busy[requestID] = false
			delete(c.ops, requestID)
			c.mu.Unlock()
			return
		}
		voting := queue[0]
		c.ops[requestID] = queue[1:]
		c.mu.Unlock()

		c.resolve(ctx, requestID, voting)
	}
}

func (c *Coordinator) resolve(ctx context.Context, requestID string, voting bool) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if voting {
		id, err := idgen.Generate(idgen.PrefixVote)
		if err != nil {
			c.rollback(requestID, voting, err)
			return
		}
		err = c.store.CreateVote(ctx, &model.Vote{ID: id, RequestID: requestID, Voter: c.voter})
		if err != nil && !errors.Is(err, store.ErrDuplicateVote) {
			c.rollback(requestID, voting, err)
			return
		}
	} else {
		err := c.store.DeleteVote(ctx, requestID, c.voter.Key())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			c.rollback(requestID, voting, err)
			return
		}
	}

	count, err := c.store.CountVotes(ctx, requestID)
	if err != nil {
		// Keep the optimistic count; the next broadcast corrects it.
		c.logger.Warn("votes: tally fetch failed", "request", requestID, "error", err)
		return
	}
	c.queue.SetVoteCount(requestID, count, c.voter.Key(), voting)

	err = c.bcast.Send(ctx, events.EventVoteChange, events.VoteChange{
		RequestID: requestID,
		VoteCount: count,
		VoterKey:  c.voter.Key(),
		Voted:     voting,
	})
	if err != nil {
		c.logger.Warn("votes: broadcast failed", "request", requestID, "error", err)
	}
}

// rollback undoes exactly the optimistic adjustment of a failed toggle.
func (c *Coordinator) rollback(requestID string, voting bool, err error) {
	c.logger.Warn("votes: toggle write failed", "request", requestID, "voting", voting, "error", err)
	if voting {
		c.queue.AdjustVote(requestID, -1, false)
	} else {
		c.queue.AdjustVote(requestID, 1, true)
	}
}

// Flush blocks until all queued toggles have resolved.
func (c *Coordinator) Flush() {
	c.wg.Wait()
}
