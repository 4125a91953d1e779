package reconcile

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

func req(id string, votes int, at time.Time, status model.RequestStatus) *model.Request {
	return &model.Request{
		ID:        id,
		Author:    other,
		Title:     "t-" + id,
		Artist:    "a-" + id,
		Status:    status,
		CreatedAt: at,
		VoteCount: votes,
		Stage:     model.StageConfirmed,
	}
}

func queueIDs(q *RequestQueue) []string {
	reqs := q.Requests()
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}

func TestRequestQueue_VoteOrderWithTies(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	base := time.Unix(1000, 0)

	// Votes descending, earlier creation winning ties: C (t=0) beats
	// B (t=2) at five votes each, A trails with two.
	q.Insert(req("A", 2, base.Add(1*time.Second), model.StatusPending))
	q.Insert(req("B", 5, base.Add(2*time.Second), model.StatusPending))
	q.Insert(req("C", 5, base, model.StatusPending))

	got := queueIDs(q)
	want := []string{"C", "B", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRequestQueue_PlayingSortsFirst(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	base := time.Unix(1000, 0)

	q.Insert(req("hot", 99, base, model.StatusPending))
	q.Insert(req("onair", 0, base.Add(time.Minute), model.StatusPlaying))

	got := queueIDs(q)
	if got[0] != "onair" {
		t.Errorf("order = %v, playing entry must lead", got)
	}
}

func TestRequestQueue_PlayedEntriesRemoved(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	base := time.Now()

	q.Insert(req("r1", 3, base, model.StatusPending))
	q.Insert(req("r2", 1, base, model.StatusPending))

	q.SetStatus("r1", model.StatusPlayed, &base)
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1 (played removed, not re-sorted)", q.Len())
	}
	if _, ok := q.Get("r1"); ok {
		t.Error("played entry still visible")
	}

	// A played status arriving as a full-record broadcast removes too.
	played := req("r2", 1, base, model.StatusPlayed)
	q.ApplyRemote(played)
	if q.Len() != 0 {
		t.Errorf("len = %d, want 0", q.Len())
	}
}

func TestRequestQueue_SnapshotHorizonFilter(t *testing.T) {
	q := NewRequestQueue(self.Key(), 15*time.Minute)
	now := time.Now()

	q.ApplySnapshot([]*model.Request{
		req("fresh", 0, now.Add(-time.Minute), model.StatusPending),
		req("stale", 9, now.Add(-16*time.Minute), model.StatusPending),
		req("done", 9, now.Add(-time.Minute), model.StatusPlayed),
	})

	got := queueIDs(q)
	if len(got) != 1 || got[0] != "fresh" {
		t.Errorf("queue = %v, want [fresh]", got)
	}
}

func TestRequestQueue_SnapshotPreservesVotedFlag(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	now := time.Now()

	q.Insert(req("r1", 1, now, model.StatusPending))
	q.AdjustVote("r1", 1, true)

	q.ApplySnapshot([]*model.Request{req("r1", 2, now, model.StatusPending)})

	r, ok := q.Get("r1")
	if !ok {
		t.Fatal("r1 missing after snapshot")
	}
	if !r.Voted {
		t.Error("voted flag lost across snapshot")
	}
	if r.VoteCount != 2 {
		t.Errorf("count = %d, want authoritative 2", r.VoteCount)
	}
}

func TestRequestQueue_AdjustVoteResorts(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	base := time.Unix(1000, 0)

	q.Insert(req("r1", 1, base, model.StatusPending))
	q.Insert(req("r2", 2, base.Add(time.Second), model.StatusPending))

	if got := queueIDs(q); got[0] != "r2" {
		t.Fatalf("precondition: order = %v", got)
	}

	// Optimistic upvote moves r1 to 2 votes; tie broken by earlier creation.
	q.AdjustVote("r1", 1, true)
	if got := queueIDs(q); got[0] != "r1" {
		t.Errorf("order after upvote = %v, want r1 first", got)
	}

	// Rollback restores the previous order.
	q.AdjustVote("r1", -1, false)
	if got := queueIDs(q); got[0] != "r2" {
		t.Errorf("order after rollback = %v, want r2 first", got)
	}
}

func TestRequestQueue_AdjustVoteClampsAtZero(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	q.Insert(req("r1", 0, time.Now(), model.StatusPending))

	q.AdjustVote("r1", -1, false)
	r, _ := q.Get("r1")
	if r.VoteCount != 0 {
		t.Errorf("count = %d, want clamp at 0", r.VoteCount)
	}
}

func TestRequestQueue_SetVoteCountAuthoritative(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	q.Insert(req("r1", 1, time.Now(), model.StatusPending))

	// Drifted local count replaced by the broadcast tally.
	q.AdjustVote("r1", 1, true)
	q.SetVoteCount("r1", 5, other.Key(), true)

	r, _ := q.Get("r1")
	if r.VoteCount != 5 {
		t.Errorf("count = %d, want 5", r.VoteCount)
	}
	// Another identity's vote must not flip our membership.
	if !r.Voted {
		t.Error("voted flag changed by another identity's broadcast")
	}

	// Our own toggle from another connection does flip membership.
	q.SetVoteCount("r1", 4, self.Key(), false)
	r, _ = q.Get("r1")
	if r.Voted {
		t.Error("voted flag should follow our own remote toggle")
	}
}

func TestRequestQueue_OwnEchoSuppressedWhilePending(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	now := time.Now()

	mine := &model.Request{
		ID: "opt-1", Author: self, Title: "Imagine", Artist: "John Lennon",
		Status: model.StatusPending, CreatedAt: now, Stage: model.StageOptimistic,
	}
	q.Insert(mine)

	echo := &model.Request{
		ID: "req-9", Author: self, Title: "Imagine", Artist: "John Lennon",
		Status: model.StatusPending, CreatedAt: now, Stage: model.StageConfirmed,
	}
	q.ApplyRemote(echo)

	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
	if got := queueIDs(q); got[0] != "opt-1" {
		t.Errorf("surviving entry = %v, want the placeholder", got)
	}
}

func TestRequestQueue_ReplaceKeepsVotedFlag(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	now := time.Now()

	placeholder := &model.Request{
		ID: "opt-1", Author: self, Title: "Heroes", Artist: "David Bowie",
		Status: model.StatusPending, CreatedAt: now, Stage: model.StageOptimistic,
	}
	q.Insert(placeholder)
	q.AdjustVote("opt-1", 1, true)

	confirmed := &model.Request{
		ID: "req-3", Author: self, Title: "Heroes", Artist: "David Bowie",
		Status: model.StatusPending, CreatedAt: now, VoteCount: 1, Stage: model.StageConfirmed,
	}
	if !q.Replace("opt-1", confirmed) {
		t.Fatal("Replace failed")
	}

	r, ok := q.Get("req-3")
	if !ok {
		t.Fatal("confirmed entry missing")
	}
	if !r.Voted {
		t.Error("voted flag lost across placeholder replacement")
	}
}

func TestRequestQueue_TotalOrderProperty(t *testing.T) {
	q := NewRequestQueue(self.Key(), 0)
	base := time.Unix(1000, 0)

	q.Insert(req("p", 0, base.Add(9*time.Second), model.StatusPlaying))
	for i, votes := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
		q.Insert(req(string(rune('a'+i)), votes, base.Add(time.Duration(i)*time.Second), model.StatusPending))
	}

	reqs := q.Requests()
	for i := 1; i < len(reqs); i++ {
		prev, cur := reqs[i-1], reqs[i]
		if cur.Status == model.StatusPlaying && prev.Status != model.StatusPlaying {
			t.Fatalf("playing entry at %d follows non-playing", i)
		}
		if prev.Status == cur.Status {
			if prev.VoteCount < cur.VoteCount {
				t.Fatalf("votes increase at %d: %d < %d", i, prev.VoteCount, cur.VoteCount)
			}
			if prev.VoteCount == cur.VoteCount && prev.CreatedAt.After(cur.CreatedAt) {
				t.Fatalf("creation times decrease within a tie at %d", i)
			}
		}
	}
}
