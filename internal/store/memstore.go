// Package store provides persistence for widget hosts.
// This file contains the in-memory implementation for testing.
package store

import (
	"sort"
	"sync"
)

// MemStore is an in-memory implementation of Storer for testing.
type MemStore struct {
	mu       sync.RWMutex
	versions map[string][]*Label // key -> versions, oldest first
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		versions: make(map[string][]*Label),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

func (s *MemStore) UpsertLabel(l *Label) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deep copy to avoid mutation issues
	row := *l
	row.IsCurrent = true
	row.ValidTo = nil

	history := s.versions[l.Key]
	if len(history) == 0 {
		s.versions[l.Key] = []*Label{&row}
		l.IsCurrent, l.ValidTo = true, nil
		return true, nil
	}

	current := history[len(history)-1]
	switch {
	case l.Version < current.Version:
		return false, nil
	case l.Version == current.Version:
		current.Group = l.Group
		current.Category = l.Category
		current.Left = l.Left
		current.Right = l.Right
	default:
		closedAt := l.ValidFrom
		current.ValidTo = &closedAt
		current.IsCurrent = false
		s.versions[l.Key] = append(history, &row)
	}
	l.IsCurrent, l.ValidTo = true, nil
	return true, nil
}

func (s *MemStore) GetLabel(key string) (*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[key]
	if len(history) == 0 {
		return nil, nil
	}
	return copyLabel(history[len(history)-1]), nil
}

func (s *MemStore) DeleteLabel(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.versions, key)
	return nil
}

func (s *MemStore) ListLabels(group string) ([]*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*Label{}
	for _, history := range s.versions {
		current := history[len(history)-1]
		if group == "" || current.Group == group {
			result = append(result, copyLabel(current))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Left != result[j].Left {
			return result[i].Left < result[j].Left
		}
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (s *MemStore) ListLabelVersions(key string) ([]*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[key]
	result := make([]*Label, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		result = append(result, copyLabel(history[i]))
	}
	return result, nil
}

func (s *MemStore) CountLabels(group string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, history := range s.versions {
		if group == "" || history[len(history)-1].Group == group {
			n++
		}
	}
	return n, nil
}

func copyLabel(l *Label) *Label {
	c := *l
	if l.ValidTo != nil {
		v := *l.ValidTo
		c.ValidTo = &v
	}
	return &c
}

// Compile-time interface check
var _ Storer = (*MemStore)(nil)
