package model

import (
	"errors"
	"strings"
	"testing"
)

func TestAuthorValidate_ExactlyOne(t *testing.T) {
	cases := []struct {
		name    string
		author  Author
		wantErr error
	}{
		{"registered", Author{UserID: "u1"}, nil},
		{"anonymous", Author{Anonymous: &Anonymous{ID: "a1", DisplayName: "Night Owl"}}, nil},
		{"both", Author{UserID: "u1", Anonymous: &Anonymous{ID: "a1"}}, ErrAuthorAmbiguous},
		{"neither", Author{}, ErrAuthorMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.author.Validate(); !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAuthorKey_DistinguishesKinds(t *testing.T) {
	reg := Author{UserID: "abc"}
	anon := Author{Anonymous: &Anonymous{ID: "abc"}}
	if reg.Key() == anon.Key() {
		t.Errorf("registered and anonymous keys collide: %q", reg.Key())
	}
	if (Author{}).Key() != "" {
		t.Error("empty author should have empty key")
	}
}

func TestValidateMessageBody(t *testing.T) {
	if _, err := ValidateMessageBody("   \t\n "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("whitespace-only body: got %v, want ErrEmptyBody", err)
	}

	got, err := ValidateMessageBody("  hello room  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello room" {
		t.Errorf("body not trimmed: %q", got)
	}

	long := strings.Repeat("x", MaxMessageLen+1)
	_, err = ValidateMessageBody(long)
	var tooLong *TooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("expected *TooLongError, got %v", err)
	}
	if tooLong.Max != MaxMessageLen {
		t.Errorf("Max = %d, want %d", tooLong.Max, MaxMessageLen)
	}

	// Exactly at the bound is allowed.
	if _, err := ValidateMessageBody(strings.Repeat("x", MaxMessageLen)); err != nil {
		t.Errorf("body at bound rejected: %v", err)
	}
}

func TestValidateRequestFields(t *testing.T) {
	title, artist, err := ValidateRequestFields(" Imagine ", " John Lennon ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Imagine" || artist != "John Lennon" {
		t.Errorf("not trimmed: %q / %q", title, artist)
	}

	if _, _, err := ValidateRequestFields("", "x"); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("empty title: got %v", err)
	}
	if _, _, err := ValidateRequestFields("x", "  "); !errors.Is(err, ErrEmptyArtist) {
		t.Errorf("empty artist: got %v", err)
	}
	if _, _, err := ValidateRequestFields(strings.Repeat("y", MaxTitleLen+1), "x"); err == nil {
		t.Error("oversized title accepted")
	}
}

func TestStageAndStatusValidity(t *testing.T) {
	for _, s := range []Stage{StageOptimistic, StageConfirmed, StageFailed} {
		if !s.IsValid() {
			t.Errorf("stage %q should be valid", s)
		}
	}
	if Stage("pending").IsValid() {
		t.Error("unknown stage accepted")
	}

	for _, s := range []RequestStatus{StatusPending, StatusPlaying, StatusPlayed} {
		if !s.IsValid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if RequestStatus("optimistic").IsValid() {
		t.Error("unknown status accepted")
	}
}
