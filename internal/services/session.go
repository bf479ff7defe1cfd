package services

import (
	"context"
	"errors"
	"sync"

	"tally/internal/core"
)

// ErrSuperseded is returned for a refresh whose result arrived after a newer
// refresh was issued. The result is discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// Session serializes the view of one user: every refresh is tagged with a
// monotonically increasing sequence number and only the latest issued
// sequence may publish its result.
type Session struct {
	mu      sync.Mutex
	latest  uint64
	applied uint64
	current Dashboard
}

// Begin issues a sequence number for a new refresh. A non-zero requested
// sequence (from the client) is used when it is newer than anything seen so
// far; an older one is rejected with ErrSuperseded.
func (s *Session) Begin(requested uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requested == 0 {
		s.latest++
		return s.latest, nil
	}
	if requested <= s.latest {
		return 0, ErrSuperseded
	}
	s.latest = requested
	return requested, nil
}

// Apply stores d if seq is still the latest issued sequence.
func (s *Session) Apply(seq uint64, d Dashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.latest {
		return ErrSuperseded
	}
	s.applied = seq
	s.current = d
	return nil
}

// Current returns the last applied dashboard and its sequence.
func (s *Session) Current() (Dashboard, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.applied
}

// Refresh runs one load cycle under sequence control. A load error is
// returned together with the (empty) dashboard when the refresh is still
// current, so the caller can render a warning.
func (s *Session) Refresh(ctx context.Context, l DashboardLoader, owner string, requested uint64, f core.Filter) (Dashboard, uint64, error) {
	seq, err := s.Begin(requested)
	if err != nil {
		return Dashboard{}, 0, err
	}
	d, loadErr := l.Load(ctx, owner, f)
	if err := s.Apply(seq, d); err != nil {
		return Dashboard{}, seq, err
	}
	return d, seq, loadErr
}

// Sessions keeps one Session per owner.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: map[string]*Session{}}
}

func (s *Sessions) For(owner string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[owner]
	if !ok {
		sess = &Session{}
		s.sessions[owner] = sess
	}
	return sess
}
