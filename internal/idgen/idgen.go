// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each record kind. Placeholder tokens (PrefixPlaceholder)
// exist only client-side and are never persisted as real ids.
const (
	PrefixMessage     = "msg-"
	PrefixRequest     = "req-"
	PrefixVote        = "vote-"
	PrefixIdentity    = "anon-"
	PrefixPlaceholder = "opt-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID with the given prefix.
func Generate(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// IsPlaceholder reports whether id is a client-side placeholder token.
func IsPlaceholder(id string) bool {
	return len(id) > len(PrefixPlaceholder) && id[:len(PrefixPlaceholder)] == PrefixPlaceholder
}
