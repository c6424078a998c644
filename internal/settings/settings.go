// Package settings persists per-platform settings documents.
//
// A document is a free-form JSON object. Load fills in missing default keys
// and repairs hand-edited files where it can; Save merges the new document
// with what is already on disk instead of overwriting it.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

// Document is a decoded settings file.
type Document map[string]any

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// CorruptError is returned when a settings file cannot be parsed even after
// the repair pass. The unreadable file has been moved to Backup.
type CorruptError struct {
	Path   string
	Backup string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("settings file %s is corrupt (moved to %s): %v", e.Path, e.Backup, e.Err)
}

func (e *CorruptError) Unwrap() []error { return []error{core.ErrCorruptSettings, e.Err} }

// saveMu guards read-modify-write cycles on settings files.
var saveMu sync.Mutex

// Load reads the document at path. A missing or empty file yields defaults,
// which are written to path. Keys present in defaults but missing from the
// file are added and the file is rewritten.
func Load(path string, defaults Document) (Document, error) {
	saveMu.Lock()
	defer saveMu.Unlock()
	return load(path, defaults)
}

func load(path string, defaults Document) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		doc := defaults.Clone()
		if err := write(path, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc, parseErr := decode(data)
	rewrite := false
	if parseErr != nil {
		doc, err = decode(repair(data))
		if err != nil {
			backup := backupPath(path)
			if rerr := os.Rename(path, backup); rerr != nil {
				backup = path
			}
			return nil, &CorruptError{Path: path, Backup: backup, Err: parseErr}
		}
		rewrite = true
	}

	for k, v := range defaults {
		if _, ok := doc[k]; !ok {
			doc[k] = cloneValue(v)
			rewrite = true
		}
	}
	if rewrite {
		if err := write(path, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("settings root is not an object")
	}
	return doc, nil
}

var (
	pathKeyLine   = regexp.MustCompile(`(?i)^\s*"[^"]*path[^"]*"\s*:`)
	loneBackslash = regexp.MustCompile(`\\\\|\\`)
)

// repair doubles single backslashes on lines holding a *path* key, then
// strips comments and trailing commas. Windows users tend to paste
// install paths verbatim.
func repair(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if !pathKeyLine.MatchString(line) {
			continue
		}
		lines[i] = loneBackslash.ReplaceAllStringFunc(line, func(m string) string {
			if m == `\\` {
				return m
			}
			return `\\`
		})
	}
	return jsonc.ToJSON([]byte(strings.Join(lines, "\n")))
}

func backupPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_err" + ext
}

// Save writes doc to path merged with the existing file. With
// mergeNewIntoOld the new fields win and arrays are unioned; otherwise
// arrays in doc replace the stored ones. Objects merge recursively in both
// modes and a null in doc never erases a stored value.
func Save(path string, doc Document, mergeNewIntoOld bool) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	existing := Document{}
	if data, err := os.ReadFile(path); err == nil && len(bytes.TrimSpace(data)) > 0 {
		if parsed, err := decode(data); err == nil {
			existing = parsed
		} else if parsed, err := decode(repair(data)); err == nil {
			existing = parsed
		}
	}

	return write(path, Merge(existing, doc, mergeNewIntoOld))
}

// Merge returns a new document combining old and next.
func Merge(old, next Document, unionArrays bool) Document {
	out := old.Clone()
	mergeInto(out, next, unionArrays)
	return out
}

func mergeInto(dst map[string]any, src map[string]any, unionArrays bool) {
	for k, nv := range src {
		if nv == nil {
			if _, ok := dst[k]; !ok {
				dst[k] = nil
			}
			continue
		}
		ov, exists := dst[k]
		if !exists || ov == nil {
			dst[k] = cloneValue(nv)
			continue
		}
		switch n := nv.(type) {
		case map[string]any:
			if o, ok := ov.(map[string]any); ok {
				mergeInto(o, n, unionArrays)
				continue
			}
		case []any:
			if o, ok := ov.([]any); ok && unionArrays {
				dst[k] = union(o, n)
				continue
			}
		}
		dst[k] = cloneValue(nv)
	}
}

func union(old, next []any) []any {
	out := make([]any, 0, len(old)+len(next))
	out = append(out, old...)
	for _, item := range next {
		found := false
		for _, have := range out {
			if reflect.DeepEqual(have, item) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, cloneValue(item))
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return cloneValue(map[string]any(t))
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

func write(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
