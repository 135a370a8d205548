// Package session tracks MCP streamable HTTP sessions.
//
// A session is created by a successful initialize and bound to the subject
// of the token that created it. Later requests may only use it with a token
// for the same subject.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
)

type entry struct {
	subject  string
	lastSeen time.Time
}

// Store is an in-memory session table with idle expiry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl without use.
// A non-positive ttl disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a session for subject and returns its id.
func (s *Store) Create(subject string) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &entry{subject: subject, lastSeen: s.now()}
	s.mu.Unlock()

	return id
}

// Touch checks that id is live and owned by subject, and extends it.
func (s *Store) Touch(id, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id, subject)
	if err != nil {
		return err
	}
	e.lastSeen = s.now()
	return nil
}

// Delete ends the session. Ending a session owned by another subject fails
// exactly like ending an unknown one.
func (s *Store) Delete(id, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id, subject); err != nil {
		return err
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the number of tracked sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// lookup must be called with s.mu held.
func (s *Store) lookup(id, subject string) (*entry, error) {
	e, ok := s.sessions[id]
	if !ok || e.subject != subject {
		return nil, ierrors.New("transport", "session.lookup", ierrors.ErrNotFound, transportcore.ErrSessionNotFound)
	}
	if s.expired(e) {
		delete(s.sessions, id)
		return nil, ierrors.New("transport", "session.lookup", ierrors.ErrNotFound, transportcore.ErrSessionNotFound)
	}
	return e, nil
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}
