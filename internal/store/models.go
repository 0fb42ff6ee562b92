// Package store provides persistence for the labels a widget host receives.
// Labels are kept per group with the full version history of each key.
package store

import "github.com/kittclouds/labelgraph/pkg/label"

// Label is one stored version of a label.
// Uses temporal table pattern: (Key, Version) is unique and exactly one
// version per key is current.
type Label struct {
	Key      string  `json:"key"`
	Version  int     `json:"version"`
	Group    string  `json:"group"`
	Category string  `json:"category"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`

	// Temporal fields for version tracking
	ValidFrom int64  `json:"validFrom"`
	ValidTo   *int64 `json:"validTo,omitempty"`
	IsCurrent bool   `json:"isCurrent"`
}

// FromLabel wraps a widget label for storage in group, valid from at.
func FromLabel(group string, l label.Label, at int64) *Label {
	return &Label{
		Key:       l.Key,
		Version:   l.Version,
		Group:     group,
		Category:  l.Category,
		Left:      l.Left,
		Right:     l.Right,
		ValidFrom: at,
	}
}

// Label returns the widget view of the stored version.
func (l *Label) Label() label.Label {
	return label.Label{
		Key:      l.Key,
		Category: l.Category,
		Left:     l.Left,
		Right:    l.Right,
		Version:  l.Version,
	}
}

// Storer defines the interface for label persistence.
// MemStore backs tests; SQLiteStore is the production implementation.
type Storer interface {
	// UpsertLabel stores l as the current version of its key. A version
	// equal to the current one is updated in place, a higher one closes the
	// current row and opens a new one, and a lower one is ignored. It
	// reports whether anything was written.
	UpsertLabel(l *Label) (bool, error)
	// GetLabel returns the current version, or nil if the key is unknown.
	GetLabel(key string) (*Label, error)
	// DeleteLabel removes every version of key.
	DeleteLabel(key string) error
	// ListLabels returns the current versions in group ordered by left
	// bound then key. An empty group lists every group.
	ListLabels(group string) ([]*Label, error)
	// ListLabelVersions returns every version of key, newest first.
	ListLabelVersions(key string) ([]*Label, error)
	CountLabels(group string) (int, error)

	// Lifecycle
	Close() error
}

// ApplyResult summarizes one Apply call.
type ApplyResult struct {
	Written int `json:"written"`
	Stale   int `json:"stale"`
	Deleted int `json:"deleted"`
}

// Apply persists a widget result for group: every label is upserted, then
// every deleted key is removed.
func Apply(s Storer, group string, labels []label.Label, deleted []string, at int64) (ApplyResult, error) {
	var res ApplyResult
	for _, l := range labels {
		written, err := s.UpsertLabel(FromLabel(group, l, at))
		if err != nil {
			return res, err
		}
		if written {
			res.Written++
		} else {
			res.Stale++
		}
	}
	for _, key := range deleted {
		existing, err := s.GetLabel(key)
		if err != nil {
			return res, err
		}
		if existing == nil {
			continue
		}
		if err := s.DeleteLabel(key); err != nil {
			return res, err
		}
		res.Deleted++
	}
	return res, nil
}

// Snapshot converts stored labels into a widget snapshot. The result is
// never nil, so an empty group reconciles to an empty widget.
func Snapshot(labels []*Label) label.Snapshot {
	out := make([]label.Label, len(labels))
	for i, l := range labels {
		out[i] = l.Label()
	}
	return label.ToSnapshot(out)
}
