package model

import "time"

// Stage is the client-side lifecycle tag for optimistic records.
type Stage string

const (
	// StageOptimistic marks a record that exists only locally, awaiting
	// its durable write.
	StageOptimistic Stage = "optimistic"
	// StageConfirmed marks a record backed by an authoritative row.
	StageConfirmed Stage = "confirmed"
	// StageFailed marks a record whose durable write was rejected. It
	// stays visible with a retry affordance.
	StageFailed Stage = "failed"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// IsValid checks whether the stage is a known value.
func (s Stage) IsValid() bool {
	switch s {
	case StageOptimistic, StageConfirmed, StageFailed:
		return true
	}
	return false
}

// Message is one entry in the room's chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`

	// Stage is client-side state; it is never persisted or broadcast.
	Stage Stage `json:"stage,omitempty"`
}
