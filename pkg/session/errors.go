package session

import "errors"

// Sentinel errors returned by Registry and Tracker.
var (
	// ErrDuplicateSession is returned when a connection already tracks a session.
	ErrDuplicateSession = errors.New("session: tracking already active for connection")

	// ErrSessionNotFound is returned when a connection has no live session.
	ErrSessionNotFound = errors.New("session: no active tracking session")

	// ErrSessionClosed is returned for frames that race with teardown.
	ErrSessionClosed = errors.New("session: closed")

	// ErrInvalidRequest is returned when a start request lacks required ids.
	ErrInvalidRequest = errors.New("session: missing user_id or module_id")
)
