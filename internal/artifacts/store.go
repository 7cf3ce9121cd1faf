// Package artifacts holds the live, ordered collection of attachments for one workspace.
//
// Every mutation builds a fresh backing slice and swaps it in, so a snapshot returned by
// List is never touched again by the store.
package artifacts

import (
	"sync"

	"designlens/internal/domain/attachment"
	lens_errors "designlens/pkg/errors"
)

// Patch derives the next version of an attachment from the current one.
type Patch func(current attachment.Attachment) (attachment.Attachment, error)

// Store is safe for concurrent use by the request path and background tasks.
type Store struct {
	mu       sync.RWMutex
	items    []attachment.Attachment
	onChange func([]attachment.Attachment)
	notifyMu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

// OnChange registers an observer called with a copy of every new snapshot.
// Snapshots are delivered one at a time in the order they were taken. The observer must not
// mutate the store.
func (s *Store) OnChange(fn func([]attachment.Attachment)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Add appends a. An attachment with the same id is rejected.
func (s *Store) Add(a attachment.Attachment) error {
	s.mu.Lock()
	if s.indexOf(a.ID) >= 0 {
		s.mu.Unlock()
		return lens_errors.ErrAlreadyExists
	}
	next := s.copyItems(len(s.items) + 1)
	next = append(next, a.Clone())
	s.items = next
	s.mu.Unlock()
	s.notify()
	return nil
}

// AddUnless appends a unless conflict returns true for an existing attachment.
// The check and the insert happen under one lock.
func (s *Store) AddUnless(a attachment.Attachment, conflict func(existing attachment.Attachment) bool) bool {
	s.mu.Lock()
	for _, existing := range s.items {
		if existing.ID == a.ID || (conflict != nil && conflict(existing)) {
			s.mu.Unlock()
			return false
		}
	}
	next := s.copyItems(len(s.items) + 1)
	next = append(next, a.Clone())
	s.items = next
	s.mu.Unlock()
	s.notify()
	return true
}

// UpdateByID replaces the attachment with the result of patch. A missing id is a no-op
// reporting false, which is how late background updates for removed attachments are dropped.
// The id cannot be changed and status may only move forward.
func (s *Store) UpdateByID(id string, patch Patch) (bool, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	current := s.items[idx]
	updated, err := patch(current.Clone())
	if err != nil {
		s.mu.Unlock()
		return true, err
	}
	if updated.ID != current.ID || !current.Status.CanTransition(updated.Status) {
		s.mu.Unlock()
		return true, lens_errors.ErrInvalidTransition
	}
	next := s.copyItems(len(s.items))
	next[idx] = updated.Clone()
	s.items = next
	s.mu.Unlock()
	s.notify()
	return true, nil
}

// RemoveByID drops the attachment and reports whether it was present.
func (s *Store) RemoveByID(id string) bool {
	return s.RemoveIDs(id) > 0
}

// RemoveIDs drops every listed attachment and returns how many were removed.
func (s *Store) RemoveIDs(ids ...string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	next := make([]attachment.Attachment, 0, len(s.items))
	for _, a := range s.items {
		if _, ok := drop[a.ID]; !ok {
			next = append(next, a)
		}
	}
	removed := len(s.items) - len(next)
	if removed > 0 {
		s.items = next
	}
	s.mu.Unlock()
	if removed > 0 {
		s.notify()
	}
	return removed
}

func (s *Store) Clear() {
	s.mu.Lock()
	had := len(s.items) > 0
	s.items = nil
	s.mu.Unlock()
	if had {
		s.notify()
	}
}

// List returns a deep copy of the current collection in insertion order.
func (s *Store) List() []attachment.Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := attachment.CloneAll(s.items)
	if out == nil {
		out = []attachment.Attachment{}
	}
	return out
}

func (s *Store) Get(id string) (attachment.Attachment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return attachment.Attachment{}, false
	}
	return s.items[idx].Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i, a := range s.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyItems(capacity int) []attachment.Attachment {
	next := make([]attachment.Attachment, len(s.items), capacity)
	copy(next, s.items)
	return next
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(s.List())
	}
}
