package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateVote is returned when a vote insert hits the one-vote-per-
// (request, voter) constraint. Callers reconcile to the voted state
// silently; it is never surfaced to the user.
var ErrDuplicateVote = errors.New("store: duplicate vote")

// Store is the durable-write collaborator: row-level operations against
// the messages, requests, and votes tables. Create methods return the
// authoritative row by filling server-assigned fields on the passed record.
type Store interface {
	// Messages
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, limit int) ([]*model.Message, error)

	// Requests
	CreateRequest(ctx context.Context, req *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	// ListRequests returns pending and playing requests created at or
	// after the horizon, with vote counts attached.
	ListRequests(ctx context.Context, horizon time.Time) ([]*model.Request, error)
	UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus, playedAt *time.Time) (*model.Request, error)

	// Votes
	CreateVote(ctx context.Context, vote *model.Vote) error
	DeleteVote(ctx context.Context, requestID, voterKey string) error
	CountVotes(ctx context.Context, requestID string) (int, error)
	// VotedRequestIDs returns the ids of requests the voter currently has
	// a vote on. Used to seed membership from a snapshot.
	VotedRequestIDs(ctx context.Context, voterKey string) ([]string, error)

	// History
	ListHistory(ctx context.Context, limit int) ([]*model.HistoryEntry, error)

	// Lifecycle
	Close() error
}
