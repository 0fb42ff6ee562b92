// Package label owns the authoritative label set of an annotation widget:
// interval labels with a category and a per-label version counter, the
// reconciliation of host snapshots against local edits, and the selection.
//
// A Store is not safe for concurrent use. Callers drive it from a single
// event loop; widget.Controller serializes access for hosts that cannot
// guarantee that.
package label

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidCategory is returned when recategorizing to a key that is not
// configured.
var ErrInvalidCategory = errors.New("invalid category")

// Label is an interval on the domain axis with an associated category.
// Left <= Right holds for every label a Store hands out.
type Label struct {
	Key      string  `json:"key"`
	Category string  `json:"category"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Version  int     `json:"version"`
}

// Contains reports whether x lies strictly inside the label. Touching an
// edge does not count, so adjacent labels never both match.
func (l Label) Contains(x float64) bool {
	return l.Left < x && x < l.Right
}

// Covers reports whether x lies inside the label, edges included.
func (l Label) Covers(x float64) bool {
	return l.Left <= x && x <= l.Right
}

// Width is Right - Left. Zero-width labels are valid.
func (l Label) Width() float64 {
	return l.Right - l.Left
}

// Incoming is one entry of a host snapshot. Bounds are pointers so that a
// missing bound can be told apart from zero.
type Incoming struct {
	Key      string   `json:"key"`
	Category string   `json:"category"`
	Left     *float64 `json:"left"`
	Right    *float64 `json:"right"`
	Version  int      `json:"version"`
}

// Label converts the entry to a normalized Label. It reports false for
// entries without a key or without both bounds.
func (in Incoming) Label() (Label, bool) {
	if in.Key == "" || in.Left == nil || in.Right == nil {
		return Label{}, false
	}
	lo, hi := normalize(*in.Left, *in.Right)
	return Label{
		Key:      in.Key,
		Category: in.Category,
		Left:     lo,
		Right:    hi,
		Version:  in.Version,
	}, true
}

// Snapshot is the label set as a host supplies it. A nil Snapshot means
// "no change"; an empty, non-nil Snapshot means "no labels".
type Snapshot []Incoming

// ToSnapshot converts labels to the inbound representation, e.g. to feed a
// store's own output back into Reconcile.
func ToSnapshot(labels []Label) Snapshot {
	out := make(Snapshot, len(labels))
	for i, l := range labels {
		left, right := l.Left, l.Right
		out[i] = Incoming{
			Key:      l.Key,
			Category: l.Category,
			Left:     &left,
			Right:    &right,
			Version:  l.Version,
		}
	}
	return out
}

// NewKey returns a random 128-bit identifier for a new label.
func NewKey() string {
	return uuid.NewString()
}

func normalize(a, b float64) (float64, float64) {
	if b < a {
		return b, a
	}
	return a, b
}
