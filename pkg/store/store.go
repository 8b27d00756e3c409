// Package store defines the storage collaborators: durable, append-only
// transcript storage and the ephemeral TTL'd interview state store. The live
// conversation never blocks on either; persistence is best effort.
package store

import (
	"context"
	"time"

	"github.com/hirevoice/interview-agent/pkg/interview"
)

// Entry is a single transcript line. Append-only, never mutated or deleted.
type Entry struct {
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore persists conversation transcripts per session.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, entry Entry) error
	List(ctx context.Context, sessionID string) ([]Entry, error)
	Close() error
}

// StateStore is an interview state store with a lifecycle. Implementations
// satisfy interview.StateStore for use by the orchestrator and generator.
type StateStore interface {
	interview.StateStore
	Close() error
}
