package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

// DefaultHorizon is how far back the initial queue snapshot reaches.
const DefaultHorizon = 15 * time.Minute

// RequestQueue is the ranked song-request queue. The display order is a
// total order: any playing entry first, then vote count descending, ties
// broken by creation time ascending. Entries that transition to played
// are removed entirely. The sort is stable and re-applied after every
// mutation.
type RequestQueue struct {
	mu sync.Mutex

	selfKey string
	horizon time.Duration

	byID map[string]*model.Request
	list []*model.Request
}

// NewRequestQueue creates an empty queue for the given local identity.
// horizon <= 0 uses DefaultHorizon.
func NewRequestQueue(selfKey string, horizon time.Duration) *RequestQueue {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &RequestQueue{
		selfKey: selfKey,
		horizon: horizon,
		byID:    make(map[string]*model.Request),
	}
}

// Horizon returns the snapshot age cutoff.
func (q *RequestQueue) Horizon() time.Duration { return q.horizon }

// ApplySnapshot merges an authoritative bulk load, dropping played and
// out-of-horizon entries. Optimistic and failed placeholders survive.
func (q *RequestQueue) ApplySnapshot(reqs []*model.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-q.horizon)

	var placeholders []*model.Request
	for _, r := range q.list {
		if r.Stage != model.StageConfirmed {
			placeholders = append(placeholders, r)
		}
	}

	// Carry voted flags across the reload so the local identity's
	// membership is not lost when the snapshot omits it.
	voted := make(map[string]bool, len(q.byID))
	for id, r := range q.byID {
		if r.Voted {
			voted[id] = true
		}
	}

	q.byID = make(map[string]*model.Request, len(reqs)+len(placeholders))
	q.list = q.list[:0]
	for _, r := range reqs {
		if r.Status == model.StatusPlayed || r.CreatedAt.Before(cutoff) {
			continue
		}
		if _, ok := q.byID[r.ID]; ok {
			continue
		}
		cp := *r
		cp.Stage = model.StageConfirmed
		if voted[cp.ID] {
			cp.Voted = true
		}
		q.byID[cp.ID] = &cp
		q.list = append(q.list, &cp)
	}
	for _, p := range placeholders {
		if _, ok := q.byID[p.ID]; ok {
			continue
		}
		q.byID[p.ID] = p
		q.list = append(q.list, p)
	}
	q.resort()
}

// Insert adds a locally-originated entry in its sorted position.
func (q *RequestQueue) Insert(req *model.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertLocked(req)
}

// Replace swaps the entry with the given id (a placeholder token) for the
// authoritative record. Returns false if no such entry exists.
func (q *RequestQueue) Replace(id string, req *model.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	old, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	cp := *req
	cp.Voted = old.Voted
	q.byID[cp.ID] = &cp
	for i, r := range q.list {
		if r == old {
			q.list[i] = &cp
			break
		}
	}
	q.resort()
	return true
}

// MarkFailed tags the entry with the given id as failed.
func (q *RequestQueue) MarkFailed(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.byID[id]
	if !ok {
		return false
	}
	r.Stage = model.StageFailed
	return true
}

// Remove drops the entry with the given id.
func (q *RequestQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	old, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	for i, r := range q.list {
		if r == old {
			q.list = append(q.list[:i], q.list[i+1:]...)
			break
		}
	}
	return true
}

// ApplyRemote merges a broadcast entry, with the same echo-suppression
// rule as MessageLog.ApplyRemote.
func (q *RequestQueue) ApplyRemote(req *model.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req.Status == model.StatusPlayed {
		delete(q.byID, req.ID)
		for i, r := range q.list {
			if r.ID == req.ID {
				q.list = append(q.list[:i], q.list[i+1:]...)
				break
			}
		}
		return
	}

	if existing, ok := q.byID[req.ID]; ok {
		voted := existing.Voted
		*existing = *req
		existing.Stage = model.StageConfirmed
		existing.Voted = voted
		q.resort()
		return
	}

	if req.Author.Key() == q.selfKey && q.hasPendingFromSelfLocked() {
		return
	}

	cp := *req
	cp.Stage = model.StageConfirmed
	q.insertLocked(&cp)
}

// SetStatus applies a status-change broadcast. A transition into played
// removes the entry from the visible queue entirely.
func (q *RequestQueue) SetStatus(id string, status model.RequestStatus, playedAt *time.Time) {
	if status == model.StatusPlayed {
		q.Remove(id)
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.byID[id]
	if !ok {
		return
	}
	r.Status = status
	if playedAt != nil {
		t := *playedAt
		r.PlayedAt = &t
	}
	q.resort()
}

// SetVoteCount applies an authoritative tally, replacing any locally
// accumulated delta. The voted flag is only touched when the change was
// made by the local identity on another connection.
func (q *RequestQueue) SetVoteCount(id string, count int, voterKey string, voted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.byID[id]
	if !ok {
		return
	}
	r.VoteCount = count
	if voterKey != "" && voterKey == q.selfKey {
		r.Voted = voted
	}
	q.resort()
}

// AdjustVote applies an optimistic local delta and membership flip,
// re-sorting immediately.
func (q *RequestQueue) AdjustVote(id string, delta int, voted bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.byID[id]
	if !ok {
		return false
	}
	r.VoteCount += delta
	if r.VoteCount < 0 {
		r.VoteCount = 0
	}
	r.Voted = voted
	q.resort()
	return true
}

// Get returns a copy of the entry with the given id.
func (q *RequestQueue) Get(id string) (model.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.byID[id]
	if !ok {
		return model.Request{}, false
	}
	return *r, true
}

// Requests returns a copy of the current display order.
func (q *RequestQueue) Requests() []*model.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Request, len(q.list))
	for i, r := range q.list {
		cp := *r
		out[i] = &cp
	}
	return out
}

// Len returns the number of visible entries.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.list)
}

func (q *RequestQueue) insertLocked(req *model.Request) {
	if _, ok := q.byID[req.ID]; ok {
		return
	}
	cp := *req
	q.byID[cp.ID] = &cp
	q.list = append(q.list, &cp)
	q.resort()
}

func (q *RequestQueue) hasPendingFromSelfLocked() bool {
	for _, r := range q.list {
		if r.Stage == model.StageOptimistic && r.Author.Key() == q.selfKey {
			return true
		}
	}
	return false
}

func (q *RequestQueue) resort() {
	sort.SliceStable(q.list, func(i, j int) bool {
		a, b := q.list[i], q.list[j]
		aPlaying := a.Status == model.StatusPlaying
		bPlaying := b.Status == model.StatusPlaying
		if aPlaying != bPlaying {
			return aPlaying
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
