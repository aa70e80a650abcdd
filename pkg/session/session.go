// Package session owns the live tracking sessions: one focus state machine
// per connection, the registry that maps connections to sessions, and the
// Tracker operations the transport calls.
package session

import (
	"sync"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/persist"
)

// Session is the tracking state of one connection. Identity fields are
// immutable; everything else is guarded by mu.
type Session struct {
	ID           string
	ConnectionID string
	SubjectID    string
	ContentID    string
	SubContentID string
	CreatedAt    time.Time

	kind string

	mu        sync.Mutex
	machine   *focus.Machine
	lastFlush time.Time
	closed    bool
}

// Info is a read-only description of a live session.
type Info struct {
	ConnectionID string    `json:"connection_id"`
	SessionID    string    `json:"session_id"`
	SubjectID    string    `json:"user_id"`
	ContentID    string    `json:"module_id"`
	SubContentID string    `json:"section_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Info returns the session's identity.
func (s *Session) Info() Info {
	return Info{
		ConnectionID: s.ConnectionID,
		SessionID:    s.ID,
		SubjectID:    s.SubjectID,
		ContentID:    s.ContentID,
		SubContentID: s.SubContentID,
		CreatedAt:    s.CreatedAt,
	}
}

// Snapshot returns the session's metrics at now.
func (s *Session) Snapshot(now time.Time) focus.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Snapshot(now)
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// The methods below implement persist.Source. Callers hold s.mu.

// Record builds the persisted record for now.
func (s *Session) Record(now time.Time) persist.Record {
	subj := persist.Subject{
		SessionID:    s.ID,
		SubjectID:    s.SubjectID,
		ContentID:    s.ContentID,
		SubContentID: s.SubContentID,
	}
	return persist.NewRecord(subj, s.machine.Snapshot(now), s.kind, now)
}

// LastFlush returns the time of the most recent flush attempt.
func (s *Session) LastFlush() time.Time { return s.lastFlush }

// MarkFlushed records a flush attempt at now.
func (s *Session) MarkFlushed(now time.Time) { s.lastFlush = now }
