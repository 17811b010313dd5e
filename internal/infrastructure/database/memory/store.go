// Package memory is a process-local record and pattern store. Profiles are
// kept encoded so reads hand out independent copies, matching the durable
// backends.
package memory

import (
	"context"
	"sync"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
)

type Store struct {
	mu       sync.RWMutex
	profiles map[string][]byte
	events   map[string][]profile.ActionEvent
	patterns []corpus.SuccessPattern
}

var (
	_ profile.RecordStore = (*Store)(nil)
	_ corpus.PatternStore = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		profiles: make(map[string][]byte),
		events:   make(map[string][]profile.ActionEvent),
	}
}

func (s *Store) Get(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.RLock()
	data, ok := s.profiles[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return profile.Decode(data)
}

func (s *Store) Put(_ context.Context, userID string, p *profile.Profile) error {
	data, err := profile.Encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profiles[userID] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) AppendEvent(_ context.Context, e profile.ActionEvent) error {
	s.mu.Lock()
	s.events[e.UserID] = append(s.events[e.UserID], e)
	s.mu.Unlock()
	return nil
}

// Events returns a copy of the user's action log, oldest first.
func (s *Store) Events(_ context.Context, userID string) ([]profile.ActionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]profile.ActionEvent(nil), s.events[userID]...), nil
}

// SavePatterns replaces the stored pattern set.
func (s *Store) SavePatterns(_ context.Context, patterns []corpus.SuccessPattern) error {
	s.mu.Lock()
	s.patterns = append([]corpus.SuccessPattern(nil), patterns...)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListPatterns(_ context.Context) ([]corpus.SuccessPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]corpus.SuccessPattern(nil), s.patterns...), nil
}
