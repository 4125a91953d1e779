package optimistic

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/store"
)

var self = model.Author{Anonymous: &model.Anonymous{ID: "a1", DisplayName: "Neon Fox"}}

// fakeStore lets tests script the write path. Unset hooks succeed and
// stamp a server timestamp.
type fakeStore struct {
	createMessage func(ctx context.Context, msg *model.Message) error
	createRequest func(ctx context.Context, req *model.Request) error
}

var _ store.Store = (*fakeStore)(nil)

func (s *fakeStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	if s.createMessage != nil {
		return s.createMessage(ctx, msg)
	}
	msg.CreatedAt = time.Now()
	return nil
}

func (s *fakeStore) CreateRequest(ctx context.Context, req *model.Request) error {
	if s.createRequest != nil {
		return s.createRequest(ctx, req)
	}
	req.CreatedAt = time.Now()
	return nil
}

func (s *fakeStore) ListMessages(context.Context, int) ([]*model.Message, error) { return nil, nil }
func (s *fakeStore) GetRequest(context.Context, string) (*model.Request, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) ListRequests(context.Context, time.Time) ([]*model.Request, error) {
	return nil, nil
}
func (s *fakeStore) UpdateRequestStatus(context.Context, string, model.RequestStatus, *time.Time) (*model.Request, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) CreateVote(context.Context, *model.Vote) error       { return nil }
func (s *fakeStore) DeleteVote(context.Context, string, string) error    { return nil }
func (s *fakeStore) CountVotes(context.Context, string) (int, error)     { return 0, nil }
func (s *fakeStore) VotedRequestIDs(context.Context, string) ([]string, error) {
	return nil, nil
}
func (s *fakeStore) ListHistory(context.Context, int) ([]*model.HistoryEntry, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

// recordingBroadcaster captures Send calls for assertion.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	loads  []any
}

func (b *recordingBroadcaster) Send(_ context.Context, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	b.loads = append(b.loads, payload)
	return nil
}

func (b *recordingBroadcaster) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}
