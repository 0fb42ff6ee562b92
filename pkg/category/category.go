// Package category holds the configured label categories and resolves
// category keys to their display attributes.
package category

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultColor is the fill used for labels without a resolvable category.
const DefaultColor = "rgba(0, 0, 0, 0.1)"

// Category is a named, colored classification assignable to labels.
type Category struct {
	Key   string `json:"key" mapstructure:"key"`
	Color string `json:"color" mapstructure:"color"`
}

// Default is the reserved fallback category.
var Default = Category{Key: "", Color: DefaultColor}

// Config is the widget configuration as supplied by the host.
type Config struct {
	Categories []Category `json:"categories"`
}

// ParseConfig decodes a JSON config of the form {"categories": [...]}.
// An empty or "null" input yields an empty config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse category config: %w", err)
	}
	return cfg, nil
}

// Registry resolves category keys. It is immutable once built.
type Registry struct {
	categories []Category
	byKey      map[string]Category
}

// NewRegistry builds a registry from the configured categories.
// When a key appears twice the first entry wins. Entries with an empty key
// are skipped since "" is reserved for the default category.
func NewRegistry(categories []Category) *Registry {
	r := &Registry{
		categories: make([]Category, 0, len(categories)),
		byKey:      make(map[string]Category, len(categories)),
	}
	for _, c := range categories {
		if c.Key == "" {
			continue
		}
		if _, dup := r.byKey[c.Key]; dup {
			continue
		}
		r.byKey[c.Key] = c
		r.categories = append(r.categories, c)
	}
	return r
}

// Resolve returns the configured category for key, or Default.
func (r *Registry) Resolve(key string) Category {
	if r == nil {
		return Default
	}
	if c, ok := r.byKey[key]; ok {
		return c
	}
	return Default
}

// Exists reports whether key names a configured category.
func (r *Registry) Exists(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byKey[key]
	return ok
}

// Categories returns the configured categories in configuration order.
func (r *Registry) Categories() []Category {
	if r == nil {
		return nil
	}
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Suggest returns the configured key closest to key by edit distance.
// Matches further than half the key length (rounded up) are not suggested.
func (r *Registry) Suggest(key string) (string, bool) {
	if r == nil || len(r.categories) == 0 || key == "" {
		return "", false
	}
	needle := strings.ToLower(key)
	best, bestDist := "", -1
	for _, c := range r.categories {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c.Key))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.Key, d
		}
	}
	limit := (len(key) + 1) / 2
	if bestDist > limit {
		return "", false
	}
	return best, true
}
