package model

import "time"

// TrackInfo identifies the track a stream is currently playing.
type TrackInfo struct {
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// NowPlaying is one snapshot of the radio server's state, delivered over
// its event stream or fetched from its now-playing endpoint.
type NowPlaying struct {
	Current   *TrackInfo `json:"current,omitempty"`
	Listeners int        `json:"listeners"`
	Live      bool       `json:"live"`
}

// HistoryEntry is one previously played track.
type HistoryEntry struct {
	Track           string    `json:"track"`
	Artist          string    `json:"artist"`
	PlayedAt        time.Time `json:"played_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// Typing is an ephemeral typing signal. Entries expire after TypingWindow
// and are never persisted.
type Typing struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// TypingWindow is how long a typing signal stays visible without renewal.
const TypingWindow = 3 * time.Second
