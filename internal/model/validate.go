package model

import (
	"errors"
	"fmt"
	"strings"
)

// Field length bounds. Inputs are trimmed before the bound is applied;
// anything empty after trimming is rejected before a network call is made.
const (
	MaxMessageLen = 500
	MaxTitleLen   = 100
	MaxArtistLen  = 100
)

var (
	ErrAuthorAmbiguous = errors.New("author: both user id and anonymous descriptor set")
	ErrAuthorMissing   = errors.New("author: neither user id nor anonymous descriptor set")

	ErrEmptyBody   = errors.New("message body is empty")
	ErrEmptyTitle  = errors.New("request title is empty")
	ErrEmptyArtist = errors.New("request artist is empty")
)

// TooLongError reports a field that exceeds its bound after trimming.
type TooLongError struct {
	Field string
	Max   int
	Got   int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("%s too long: %d chars (max %d)", e.Field, e.Got, e.Max)
}

// ValidateMessageBody trims the body and checks bounds. Returns the
// trimmed body on success.
func ValidateMessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if n := len([]rune(body)); n > MaxMessageLen {
		return "", &TooLongError{Field: "message", Max: MaxMessageLen, Got: n}
	}
	return body, nil
}

// ValidateRequestFields trims title and artist and checks bounds. Returns
// the trimmed values on success.
func ValidateRequestFields(title, artist string) (string, string, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" {
		return "", "", ErrEmptyTitle
	}
	if artist == "" {
		return "", "", ErrEmptyArtist
	}
	if n := len([]rune(title)); n > MaxTitleLen {
		return "", "", &TooLongError{Field: "title", Max: MaxTitleLen, Got: n}
	}
	if n := len([]rune(artist)); n > MaxArtistLen {
		return "", "", &TooLongError{Field: "artist", Max: MaxArtistLen, Got: n}
	}
	return title, artist, nil
}
