// Package identity maps platform identity keys to display names and keeps
// the user's preferred display order.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

const (
	IndexFile = "ids.json"
	OrderFile = "order.json"
)

// Index maps identity keys to display names.
type Index map[string]string

// LoadIndex reads an index file. A missing or unreadable file is an empty
// index.
func LoadIndex(path string) Index {
	idx := Index{}
	data, err := os.ReadFile(path)
	if err != nil {
		return idx
	}
	if err := json.Unmarshal(data, &idx); err != nil || idx == nil {
		return Index{}
	}
	return idx
}

// SaveIndex writes idx to path, creating the parent directory.
func SaveIndex(path string, idx Index) error {
	if idx == nil {
		idx = Index{}
	}
	return writeJSON(path, idx)
}

// Forget removes key from the index.
func (idx Index) Forget(key string) error {
	if _, ok := idx[key]; !ok {
		return fmt.Errorf("identity key %q: %w", key, core.ErrNotFound)
	}
	delete(idx, key)
	return nil
}

// KeyFor returns the key whose display name is name.
func (idx Index) KeyFor(name string) (string, error) {
	keys := lo.Keys(lo.PickByValues(idx, []string{name}))
	switch len(keys) {
	case 0:
		return "", fmt.Errorf("identity %q: %w", name, core.ErrNotFound)
	case 1:
		return keys[0], nil
	default:
		return "", fmt.Errorf("identity %q matches %d keys: %w", name, len(keys), core.ErrAmbiguous)
	}
}

// Rename changes the display name of the single entry named oldName. The
// new name must not already belong to another key.
func (idx Index) Rename(oldName, newName string) error {
	key, err := idx.KeyFor(oldName)
	if err != nil {
		return err
	}
	if oldName != newName && idx.HasName(newName) {
		return fmt.Errorf("identity %q: %w", newName, core.ErrDuplicateName)
	}
	idx[key] = newName
	return nil
}

// Set records key under name. A name already used by a different key is
// rejected.
func (idx Index) Set(key, name string) error {
	for k, v := range idx {
		if v == name && k != key {
			return fmt.Errorf("identity %q: %w", name, core.ErrDuplicateName)
		}
	}
	idx[key] = name
	return nil
}

func (idx Index) HasName(name string) bool {
	return lo.Contains(lo.Values(idx), name)
}

// Names returns the display names sorted case-insensitively.
func (idx Index) Names() []string {
	names := lo.Uniq(lo.Values(idx))
	sortFold(names)
	return names
}

// ListAccounts returns the ordered account names for a platform cache
// directory. Without an index file the archive directory names are the
// accounts.
func ListAccounts(platformDir string) ([]string, error) {
	var names []string
	indexPath := filepath.Join(platformDir, IndexFile)
	if _, err := os.Stat(indexPath); err == nil {
		names = LoadIndex(indexPath).Names()
	} else {
		entries, err := os.ReadDir(platformDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("listing accounts: %w", err)
		}
		names = lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
			return e.Name(), e.IsDir()
		})
		sortFold(names)
	}
	return ApplyOrder(names, filepath.Join(platformDir, OrderFile)), nil
}

func sortFold(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
