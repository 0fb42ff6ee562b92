// Package journal keeps the last outbound payload of each label group on a
// hackpadfs filesystem, so a widget can restore its state without a host
// round trip (IndexedDB in the browser, the OS filesystem in the CLI).
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
	"github.com/kittclouds/labelgraph/pkg/widget"
)

// ErrNotFound is returned by Load when a group has no journal entry.
var ErrNotFound = errors.New("journal: no entry")

// Journal reads and writes payload files under Dir.
type Journal struct {
	FS  hackpadfs.FS
	Dir string
	mu  sync.Mutex
}

// New creates a journal rooted at dir on fs. Dir uses hackpadfs path
// conventions: slash separated, no leading slash.
func New(fs hackpadfs.FS, dir string) *Journal {
	return &Journal{FS: fs, Dir: strings.Trim(dir, "/")}
}

// Path returns the file a group is journaled to.
func (j *Journal) Path(group string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(group)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	if j.Dir == "" || j.Dir == "." {
		return name + ".json"
	}
	return path.Join(j.Dir, name+".json")
}

// Save writes p as the latest state of group.
func (j *Journal) Save(group string, p widget.Payload) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if j.Dir != "" && j.Dir != "." {
		if err := hackpadfs.MkdirAll(j.FS, j.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create journal dir: %w", err)
		}
	}
	if err := hackpadfs.WriteFullFile(j.FS, j.Path(group), data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal file: %w", err)
	}
	return nil
}

// Load reads the latest state of group.
func (j *Journal) Load(group string) (widget.Payload, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	content, err := hackpadfs.ReadFile(j.FS, j.Path(group))
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return widget.Payload{}, fmt.Errorf("%w for group %q", ErrNotFound, group)
	}
	if err != nil {
		return widget.Payload{}, err
	}

	var p widget.Payload
	if err := json.Unmarshal(content, &p); err != nil {
		return widget.Payload{}, fmt.Errorf("failed to decode journal: %w", err)
	}
	return p, nil
}

// Emitter returns a widget.Emitter that journals every payload for group.
func (j *Journal) Emitter(group string) widget.Emitter {
	return widget.EmitterFunc(func(p widget.Payload) error {
		return j.Save(group, p)
	})
}
