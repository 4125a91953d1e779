package model

import "time"

// RequestStatus represents where a song request is in its life on air.
type RequestStatus string

const (
	StatusPending RequestStatus = "pending"
	StatusPlaying RequestStatus = "playing"
	StatusPlayed  RequestStatus = "played"
)

// String returns the string representation of the status.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusPlaying, StatusPlayed:
		return true
	}
	return false
}

// Request is one entry in the ranked song-request queue.
type Request struct {
	ID        string        `json:"id"`
	Author    Author        `json:"author"`
	Title     string        `json:"title"`
	Artist    string        `json:"artist"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	PlayedAt  *time.Time    `json:"played_at,omitempty"` // set only on the transition into played

	// Denormalized tally, kept current by the vote coordinator.
	VoteCount int `json:"vote_count"`

	// Voted reports whether the current identity has a live vote on this
	// request. Client-side only.
	Voted bool `json:"voted,omitempty"`

	// Stage is client-side state; it is never persisted or broadcast.
	Stage Stage `json:"stage,omitempty"`
}

// Vote is one identity's standing vote for a request. At most one vote
// exists per (request, voter key) pair; the store enforces this with a
// unique constraint.
type Vote struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Voter     Author    `json:"voter"`
	CreatedAt time.Time `json:"created_at"`
}
