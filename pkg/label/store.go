package label

import (
	"fmt"

	"github.com/kittclouds/labelgraph/pkg/category"
)

// Store holds the label mapping and the deleted-keys set.
type Store struct {
	registry *category.Registry
	newKey   func() string

	labels map[string]Label
	order  []string

	deleted      map[string]struct{}
	deletedOrder []string
}

// Option configures a Store.
type Option func(*Store)

// WithKeyFunc replaces the key generator. The generator must not repeat.
func WithKeyFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// NewStore creates an empty store validating categories against registry.
func NewStore(registry *category.Registry, opts ...Option) *Store {
	s := &Store{
		registry: registry,
		newKey:   NewKey,
		labels:   make(map[string]Label),
		deleted:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileStats summarizes one Reconcile call.
type ReconcileStats struct {
	Adopted   int `json:"adopted"`
	Kept      int `json:"kept"`
	Dropped   int `json:"dropped"`
	Malformed int `json:"malformed"`
}

// =============================================================================
// Reconciliation
// =============================================================================

// Reconcile merges a host snapshot into the store. The snapshot is the full
// base: labels it does not mention are dropped. For each entry the locally
// held label survives only when its version is strictly greater; otherwise
// the entry is adopted if it has a key and both bounds. A nil snapshot is a
// no-op. The deleted-keys set is never touched, so deleted labels stay out
// of ListActive even when the host echoes them back.
func (s *Store) Reconcile(snapshot Snapshot) ReconcileStats {
	var stats ReconcileStats
	if snapshot == nil {
		return stats
	}

	next := make(map[string]Label, len(snapshot))
	order := make([]string, 0, len(snapshot))
	put := func(l Label) {
		if _, seen := next[l.Key]; !seen {
			order = append(order, l.Key)
		}
		next[l.Key] = l
	}

	for _, in := range snapshot {
		if held, ok := s.labels[in.Key]; ok && held.Version > in.Version {
			put(held)
			stats.Kept++
			continue
		}
		l, ok := in.Label()
		if !ok {
			stats.Malformed++
			continue
		}
		put(l)
		stats.Adopted++
	}

	for _, key := range s.order {
		if _, ok := next[key]; !ok {
			stats.Dropped++
		}
	}

	s.labels = next
	s.order = order
	return stats
}

// =============================================================================
// Mutations
// =============================================================================

// Create inserts a new label spanning the two edges in either order. It gets
// a fresh key, the default category and version 0.
func (s *Store) Create(left, right float64) Label {
	lo, hi := normalize(left, right)
	l := Label{
		Key:      s.newKey(),
		Category: category.Default.Key,
		Left:     lo,
		Right:    hi,
	}
	if _, exists := s.labels[l.Key]; !exists {
		s.order = append(s.order, l.Key)
	}
	s.labels[l.Key] = l
	return l
}

// SetCategory assigns categoryKey to every active label in keys and bumps
// its version. Unknown, deleted and repeated keys are skipped. An
// unconfigured categoryKey fails with ErrInvalidCategory before anything
// changes. The updated labels are returned.
func (s *Store) SetCategory(keys []string, categoryKey string) ([]Label, error) {
	if !s.registry.Exists(categoryKey) {
		if hint, ok := s.registry.Suggest(categoryKey); ok {
			return nil, fmt.Errorf("%w: %q (did you mean %q?)", ErrInvalidCategory, categoryKey, hint)
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, categoryKey)
	}

	var updated []Label
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		l, ok := s.labels[key]
		if !ok || s.IsDeleted(key) {
			continue
		}
		l.Category = categoryKey
		l.Version++
		s.labels[key] = l
		updated = append(updated, l)
	}
	return updated, nil
}

// SoftDelete marks keys as deleted. Deleting twice has no further effect.
// The keys newly added to the deleted set are returned.
func (s *Store) SoftDelete(keys []string) []string {
	var added []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := s.deleted[key]; ok {
			continue
		}
		s.deleted[key] = struct{}{}
		s.deletedOrder = append(s.deletedOrder, key)
		added = append(added, key)
	}
	return added
}

// =============================================================================
// Queries
// =============================================================================

// ListActive returns the labels that are not deleted, in insertion order of
// the current mapping.
func (s *Store) ListActive() []Label {
	out := make([]Label, 0, len(s.order))
	for _, key := range s.order {
		if s.IsDeleted(key) {
			continue
		}
		out = append(out, s.labels[key])
	}
	return out
}

// Get returns the active label with key.
func (s *Store) Get(key string) (Label, bool) {
	if s.IsDeleted(key) {
		return Label{}, false
	}
	l, ok := s.labels[key]
	return l, ok
}

// IsActive reports whether key names a stored, non-deleted label.
func (s *Store) IsActive(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// IsDeleted reports whether key was soft-deleted this session.
func (s *Store) IsDeleted(key string) bool {
	_, ok := s.deleted[key]
	return ok
}

// Deleted returns the deleted keys in the order they were deleted.
func (s *Store) Deleted() []string {
	out := make([]string, len(s.deletedOrder))
	copy(out, s.deletedOrder)
	return out
}

// At returns every active label that strictly contains x.
func (s *Store) At(x float64) []Label {
	var out []Label
	for _, l := range s.ListActive() {
		if l.Contains(x) {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the number of active labels.
func (s *Store) Len() int {
	n := 0
	for _, key := range s.order {
		if !s.IsDeleted(key) {
			n++
		}
	}
	return n
}

// Registry returns the category registry the store validates against.
func (s *Store) Registry() *category.Registry {
	return s.registry
}
