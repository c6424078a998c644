// Package watch follows a launcher's live data and reports when the
// logged-in identity changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

const DefaultDebounce = 750 * time.Millisecond

// Change is reported whenever the resolved key differs from the last one.
// An empty Key means nobody is logged in.
type Change struct {
	Key string
	At  time.Time
}

// ResolveFunc returns the live identity key, or core.ErrNoIdentity.
type ResolveFunc func() (string, error)

type Watcher struct {
	Debounce time.Duration
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{Debounce: DefaultDebounce, logger: logger}
}

// Run watches dirs (and their direct subdirectories) until ctx ends. The
// current identity is reported once at start. Locked files and resolve
// errors are logged and retried on the next change.
func (w *Watcher) Run(ctx context.Context, dirs []string, resolve ResolveFunc, onChange func(Change)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	watched := 0
	for _, dir := range dirs {
		watched += w.add(fw, dir)
	}
	if watched == 0 {
		return fmt.Errorf("none of %v exist: %w", dirs, core.ErrDirectoryNotFound)
	}

	last := ""
	first := true
	check := func() {
		key, err := resolve()
		if err != nil && !errors.Is(err, core.ErrNoIdentity) {
			w.logger.Debug("resolve failed", zap.Error(err))
			return
		}
		if key == last && !first {
			return
		}
		first = false
		last = key
		onChange(Change{Key: key, At: time.Now()})
	}
	check()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.add(fw, ev.Name)
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(w.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			check()
		}
	}
}

// add watches dir and its immediate subdirectories; it returns how many
// directories were added.
func (w *Watcher) add(fw *fsnotify.Watcher, dir string) int {
	if err := fw.Add(dir); err != nil {
		w.logger.Debug("not watching", zap.String("path", dir), zap.Error(err))
		return 0
	}
	n := 1
	entries, err := os.ReadDir(dir)
	if err != nil {
		return n
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := fw.Add(filepath.Join(dir, e.Name())); err == nil {
			n++
		}
	}
	return n
}
