// Package recent keeps a short most-recently-used list of identities per
// platform for quick switching.
package recent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
)

// Entry is one quick-switch target. Arg is what `loginswap swap` needs to
// select it, usually the display name.
type Entry struct {
	Name string `json:"name"`
	Arg  string `json:"arg"`
}

// List is backed by a JSON file mapping platform IDs to entries.
type List struct {
	path string
	// mu guards read-modify-write cycles on the file.
	mu sync.Mutex
}

func New(path string) *List {
	return &List{path: path}
}

func (l *List) load() map[string][]Entry {
	all := map[string][]Entry{}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return all
	}
	if err := json.Unmarshal(data, &all); err != nil || all == nil {
		return map[string][]Entry{}
	}
	return all
}

func (l *List) save(all map[string][]Entry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating recent dir: %w", err)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling recent list: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing recent list: %w", err)
	}
	return nil
}

// Get returns the entries for a platform, most recent first.
func (l *List) Get(platformID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()[platformID]
}

// Add puts e at the front, drops older entries with the same name and keeps
// at most limit entries. limit < 1 disables the list for the platform.
func (l *List) Add(platformID string, e Entry, limit int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.load()
	if limit < 1 {
		if _, ok := all[platformID]; !ok {
			return nil
		}
		delete(all, platformID)
		return l.save(all)
	}
	entries := lo.Filter(all[platformID], func(x Entry, _ int) bool { return x.Name != e.Name })
	entries = append([]Entry{e}, entries...)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	all[platformID] = entries
	return l.save(all)
}

func (l *List) Remove(platformID, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.load()
	entries := all[platformID]
	kept := lo.Filter(entries, func(x Entry, _ int) bool { return x.Name != name })
	if len(kept) == len(entries) {
		return nil
	}
	all[platformID] = kept
	return l.save(all)
}

// Rename updates the entry for oldName, keeping its position.
func (l *List) Rename(platformID, oldName, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.load()
	changed := false
	all[platformID] = lo.Map(all[platformID], func(x Entry, _ int) Entry {
		if x.Name == oldName {
			changed = true
			if x.Arg == oldName {
				x.Arg = newName
			}
			x.Name = newName
		}
		return x
	})
	if !changed {
		return nil
	}
	return l.save(all)
}
