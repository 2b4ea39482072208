// Package selection tracks which entities are selected for a batch operation.
//
// A Set is transient and session-scoped: callers clear it on navigation or after
// an explicit action. It has no error conditions.
package selection

import (
	"slices"
	"sync"
)

// Set is a set of entity ids with change observers.
// The zero value is not usable; call New.
type Set struct {
	mu        sync.Mutex
	ids       map[string]struct{}
	observers map[int]func(ids []string)
	nextObs   int
}

// New returns an empty set.
func New() *Set {
	return &Set{
		ids:       make(map[string]struct{}),
		observers: make(map[int]func([]string)),
	}
}

// Toggle flips the membership of id.
func (s *Set) Toggle(id string) {
	s.mu.Lock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	clear(s.ids)
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
}

// SelectAll replaces the set with exactly ids. Duplicates collapse.
func (s *Set) SelectAll(ids []string) {
	s.mu.Lock()
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
}

// Has reports whether id is selected.
func (s *Set) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns the selected ids in ascending order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Subscribe registers fn to be called with the new contents after every change.
// The returned function removes the observer.
func (s *Set) Subscribe(fn func(ids []string)) (unsubscribe func()) {
	s.mu.Lock()
	key := s.nextObs
	s.nextObs++
	s.observers[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, key)
		s.mu.Unlock()
	}
}

func (s *Set) sortedLocked() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// snapshotLocked captures the contents and observers so they can be
// notified after the lock is released.
func (s *Set) snapshotLocked() ([]string, []func([]string)) {
	observers := make([]func([]string), 0, len(s.observers))
	keys := make([]int, 0, len(s.observers))
	for k := range s.observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		observers = append(observers, s.observers[k])
	}
	return s.sortedLocked(), observers
}

func notify(observers []func([]string), ids []string) {
	for _, fn := range observers {
		fn(slices.Clone(ids))
	}
}
