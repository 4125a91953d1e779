package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

// Topic names. Each maps to the broker subject "waveroom.<topic>".
const (
	TopicChatRoom     = "chat-room"
	TopicChatTyping   = "chat-typing"
	TopicSongRequests = "song-requests"
	TopicNowPlaying   = "now-playing"
	TopicListeners    = "online-listeners"
)

// SubjectPrefix namespaces waveroom topics on the broker.
const SubjectPrefix = "waveroom."

// Subject returns the broker subject for a topic name.
func Subject(topic string) string {
	return SubjectPrefix + topic
}

// Event names carried inside envelopes.
const (
	EventNewMessage   = "new-message"
	EventNewRequest   = "new-request"
	EventVoteChange   = "vote-change"
	EventStatusChange = "status-change"
	EventTrackUpdate  = "track-update"
	EventTyping       = "typing"
	EventPresence     = "presence"
)

// Envelope is the wire frame for every broadcast. It is never persisted;
// it exists only on the broker and in subscriber callbacks.
type Envelope struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload []byte `json:"payload"`
}

// Event payloads.

type NewMessage struct {
	Message *model.Message `json:"message"`
}

type NewRequest struct {
	Request *model.Request `json:"request"`
}

type VoteChange struct {
	RequestID string `json:"request_id"`
	VoteCount int    `json:"vote_count"`
	// VoterKey identifies who toggled, so receivers can recognize their
	// own echo. Anonymous keys are self-reported, not server-verified.
	VoterKey string `json:"voter_key,omitempty"`
	Voted    bool   `json:"voted,omitempty"`
}

type StatusChange struct {
	RequestID string              `json:"request_id"`
	Status    model.RequestStatus `json:"status"`
	PlayedAt  *time.Time          `json:"played_at,omitempty"`
}

type TrackUpdate struct {
	NowPlaying *model.NowPlaying `json:"now_playing"`
}

type TypingSignal struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

type Presence struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
	Leaving     bool      `json:"leaving,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(subject string) (<-chan []byte, func(), error)
	Close() error
}
