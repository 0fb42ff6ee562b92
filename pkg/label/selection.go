package label

// Selection is the set of selected label keys. The zero value is an empty
// selection. It is only ever replaced wholesale or pruned.
type Selection struct {
	keys []string
	set  map[string]struct{}
}

// Set replaces the selection with the keys of labels. A nil or empty slice
// clears it. Keys are not checked against any store.
func (s *Selection) Set(labels []Label) {
	keys := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
	}
	s.SetKeys(keys)
}

// SetKeys replaces the selection with keys, collapsing duplicates.
func (s *Selection) SetKeys(keys []string) {
	s.keys = nil
	s.set = make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := s.set[key]; dup {
			continue
		}
		s.set[key] = struct{}{}
		s.keys = append(s.keys, key)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.SetKeys(nil)
}

// Keys returns the selected keys in selection order. Never nil.
func (s *Selection) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Contains reports whether key is selected.
func (s *Selection) Contains(key string) bool {
	_, ok := s.set[key]
	return ok
}

// Len returns the number of selected keys.
func (s *Selection) Len() int {
	return len(s.keys)
}

// Retain drops every key for which keep returns false and reports whether
// anything was dropped.
func (s *Selection) Retain(keep func(key string) bool) bool {
	kept := s.keys[:0:0]
	for _, key := range s.keys {
		if keep(key) {
			kept = append(kept, key)
		}
	}
	if len(kept) == len(s.keys) {
		return false
	}
	s.SetKeys(kept)
	return true
}
