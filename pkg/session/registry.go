package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-focus/pkg/focus"
)

// Registry maps connection ids to live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	focus focus.Config
	kind  string
	clock func() time.Time
}

// NewRegistry creates an empty registry. Sessions it creates use cfg for
// smoothing and tag their records with kind. A nil clock means time.Now.
func NewRegistry(cfg focus.Config, kind string, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		focus:    cfg,
		kind:     kind,
		clock:    clock,
	}
}

// Create registers a new session for connectionID.
func (r *Registry) Create(connectionID, subjectID, contentID, subContentID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connectionID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, connectionID)
	}

	now := r.clock()
	s := &Session{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		SubjectID:    subjectID,
		ContentID:    contentID,
		SubContentID: subContentID,
		CreatedAt:    now,
		kind:         r.kind,
		machine:      focus.NewMachine(r.focus),
		lastFlush:    now,
	}
	r.sessions[connectionID] = s
	return s, nil
}

// Lookup returns the session for connectionID.
func (r *Registry) Lookup(connectionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove detaches and returns the session for connectionID. The caller is
// responsible for its final flush.
func (r *Registry) Remove(connectionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, connectionID)
	return s, nil
}

// List returns the live sessions ordered by creation time.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
