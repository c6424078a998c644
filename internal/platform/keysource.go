package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"gopkg.in/ini.v1"

	"github.com/janekbaraniewski/loginswap/internal/archive"
	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/registry"
)

// KeySource derives the key of the identity currently logged in. It
// returns core.ErrNoIdentity when nobody is, and an error wrapping
// core.ErrFileLocked when the launcher holds the files it needs.
type KeySource interface {
	Resolve(liveRoot string) (string, error)
}

// NewKeySource builds the key source for s. Platforms without one return
// nil.
func NewKeySource(s Spec, reg registry.Store) (KeySource, error) {
	switch s.Key.Source {
	case KeyNone:
		return nil, nil
	case KeyTokenScan:
		ts, err := NewTokenScan(s.Key.Files, s.Key.Patterns)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", s.ID, err)
		}
		return ts, nil
	case KeyFileHash:
		if len(s.Key.Files) != 1 {
			return nil, fmt.Errorf("platform %s: file_hash needs exactly one file", s.ID)
		}
		return FileHash{File: s.Key.Files[0]}, nil
	case KeyRegistry:
		if s.Registry == nil {
			return nil, fmt.Errorf("platform %s: registry key source without binding", s.ID)
		}
		return RegistryValue{Store: reg, Path: s.Registry.Path, Name: s.Registry.Value}, nil
	case KeyINI:
		if len(s.Key.Files) != 1 || s.Key.Key == "" {
			return nil, fmt.Errorf("platform %s: ini_value needs one file and a key", s.ID)
		}
		return INIValue{File: s.Key.Files[0], Section: s.Key.Section, Key: s.Key.Key}, nil
	default:
		return nil, fmt.Errorf("platform %s: unknown key source %q", s.ID, s.Key.Source)
	}
}

// TokenScan searches files for an auth token and keys the identity by the
// token's SHA-256. The last file containing a token wins; within a file the
// first matching pattern wins.
type TokenScan struct {
	Globs    []string
	patterns []*regexp.Regexp
}

func NewTokenScan(globs, patterns []string) (*TokenScan, error) {
	ts := &TokenScan{Globs: globs}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("token pattern %q: %w", p, err)
		}
		ts.patterns = append(ts.patterns, re)
	}
	if len(ts.patterns) == 0 {
		return nil, errors.New("token scan needs at least one pattern")
	}
	return ts, nil
}

func (ts *TokenScan) Resolve(liveRoot string) (string, error) {
	var files []string
	for _, g := range ts.Globs {
		matches, err := filepath.Glob(filepath.Join(liveRoot, filepath.FromSlash(g)))
		if err != nil {
			return "", fmt.Errorf("bad glob %q: %w", g, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	token := ""
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("reading %s: %w", f, archive.MarkLocked(err))
		}
		for _, re := range ts.patterns {
			if m := re.Find(data); m != nil {
				token = string(m)
				break
			}
		}
	}
	if token == "" {
		return "", core.ErrNoIdentity
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:]), nil
}

// FileHash keys the identity by the BLAKE3 hash of one file.
type FileHash struct {
	File string
}

func (fh FileHash) Resolve(liveRoot string) (string, error) {
	data, err := os.ReadFile(filepath.Join(liveRoot, filepath.FromSlash(fh.File)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", core.ErrNoIdentity
		}
		return "", fmt.Errorf("reading %s: %w", fh.File, archive.MarkLocked(err))
	}
	if len(data) == 0 {
		return "", core.ErrNoIdentity
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RegistryValue uses a registry string as the identity key.
type RegistryValue struct {
	Store registry.Store
	Path  string
	Name  string
}

func (rv RegistryValue) Resolve(string) (string, error) {
	v, err := rv.Store.Get(rv.Path, rv.Name)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.ErrNoIdentity
		}
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", core.ErrNoIdentity
	}
	return v, nil
}

// INIValue uses one value of an INI file as the identity key.
type INIValue struct {
	File    string
	Section string
	Key     string
}

func (iv INIValue) Resolve(liveRoot string) (string, error) {
	path := filepath.Join(liveRoot, filepath.FromSlash(iv.File))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", core.ErrNoIdentity
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", iv.File, archive.MarkLocked(err))
	}
	v := strings.TrimSpace(cfg.Section(iv.Section).Key(iv.Key).String())
	if v == "" {
		return "", core.ErrNoIdentity
	}
	return v, nil
}
