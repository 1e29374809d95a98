package session

import (
	"context"
	"fmt"
	"time"
)

// Payload is the JSON-serializable state held by one session.
type Payload map[string]any

// Store defines the capability contract for session persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the payload for id if an unexpired record exists.
	// The second return value reports whether a record was found.
	// Discovering an expired record deletes it as a side effect and
	// reports absent.
	Get(ctx context.Context, id string) (Payload, bool, error)

	// Set unconditionally overwrites the record for id.
	// A zero expiresAt means the record never expires.
	Set(ctx context.Context, id string, payload Payload, expiresAt time.Time) error

	// Delete removes the record for id. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// ValidationError is returned when Session.Update is given an argument
// that is neither a Payload nor an updater function. It is raised before
// any storage I/O happens.
type ValidationError struct {
	Got any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: update argument must be a Payload or func(Payload) Payload, got %T", e.Got)
}

// StoreClosedError is returned when operations are attempted on a closed
// backend.
type StoreClosedError struct{}

func (StoreClosedError) Error() string {
	return "session: store is closed"
}
