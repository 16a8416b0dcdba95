package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ArchivedTurn is one completed conversation turn as persisted. Structured
// fields the core consumes stay typed; intent and metrics snapshots are
// stored as JSON blobs.
type ArchivedTurn struct {
	ID           string
	SessionID    string
	CreatedAt    time.Time
	UserInput    string
	IntentJSON   string
	AudienceSize int
	MetricsJSON  string
	Response     string
}

// StoredProposal is a reusable segmentation proposal. Payload is the full
// proposal as JSON; a later apply re-evaluates it against a live snapshot.
type StoredProposal struct {
	ID          string
	SessionID   string
	CreatedAt   time.Time
	PayloadJSON string
}
