// Package optimistic owns the submit path: render a placeholder
// immediately, perform the durable write in the background, then swap
// the placeholder for the authoritative row and broadcast it. Failed
// writes leave the placeholder visible in the failed stage for retry.
package optimistic

import (
	"context"
	"errors"
	"time"
)

// writeTimeout bounds a single durable write, independent of the
// submitting caller's context.
const writeTimeout = 10 * time.Second

// ErrUnknownToken is returned by Retry when the token does not name a
// tracked submission.
var ErrUnknownToken = errors.New("optimistic: unknown token")

// ErrWriteInFlight is returned by Retry when the submission's write has
// not resolved yet.
var ErrWriteInFlight = errors.New("optimistic: write still in flight")

// Broadcaster publishes confirmed entities to the shared topic.
// Satisfied by *channel.Topic.
type Broadcaster interface {
	Send(ctx context.Context, event string, payload any) error
}
