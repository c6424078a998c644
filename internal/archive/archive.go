// Package archive copies a launcher's live profile data into per-identity
// archive directories and back.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/crypt"
)

// Layout lists the parts of a live root that make up a login. All paths are
// relative to the live root and use forward slashes.
type Layout struct {
	Files   []string `json:"files,omitempty"`
	Folders []string `json:"folders,omitempty"`
	// Globs match individual files, e.g. "Cache/data_*".
	Globs []string `json:"globs,omitempty"`
	// Sensitive globs select files that are encrypted inside the archive.
	Sensitive []string `json:"sensitive,omitempty"`
}

// Sealer encrypts and decrypts files in place.
type Sealer interface {
	EncryptFile(path string) error
	DecryptFile(path string) error
}

type Store struct {
	// Root is the platform cache directory; identities live in Root/<name>.
	Root   string
	sealer Sealer
	logger *zap.Logger
}

func NewStore(root string, sealer Sealer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Root: root, sealer: sealer, logger: logger}
}

func (s *Store) Dir(name string) string {
	return filepath.Join(s.Root, name)
}

// path is Dir for names that stay a single directory below Root.
func (s *Store) path(name string) (string, error) {
	if err := core.ValidateDisplayName(name); err != nil {
		return "", err
	}
	return s.Dir(name), nil
}

func (s *Store) Exists(name string) bool {
	dir, err := s.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Capture replaces the archive for name with a copy of the live layout.
// Parts missing from the live root are skipped; copy failures are collected
// and returned together after the rest has been copied.
func (s *Store) Capture(liveRoot string, layout Layout, name string) error {
	dst, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("purging archive %s: %w", name, err)
	}
	if err := os.MkdirAll(dst, 0o700); err != nil {
		return fmt.Errorf("creating archive %s: %w", name, err)
	}

	var errs error
	for _, rel := range layout.Files {
		multierr.AppendInto(&errs, copyIfExists(filepath.Join(liveRoot, filepath.FromSlash(rel)), filepath.Join(dst, filepath.FromSlash(rel))))
	}
	for _, rel := range layout.Folders {
		src := filepath.Join(liveRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(src); err != nil {
			continue
		}
		multierr.AppendInto(&errs, copyDir(src, filepath.Join(dst, filepath.FromSlash(rel))))
	}
	for _, rel := range expandGlobs(liveRoot, layout.Globs) {
		multierr.AppendInto(&errs, copyIfExists(filepath.Join(liveRoot, rel), filepath.Join(dst, rel)))
	}

	if s.sealer != nil {
		for _, rel := range expandGlobs(dst, layout.Sensitive) {
			if err := s.sealer.EncryptFile(filepath.Join(dst, rel)); err != nil {
				multierr.AppendInto(&errs, fmt.Errorf("encrypting %s: %w", rel, err))
			}
		}
	}

	if errs != nil {
		s.logger.Warn("capture incomplete", zap.String("identity", name), zap.Error(errs))
	}
	return errs
}

// Install copies the archive for name over the live root and decrypts the
// sensitive files there. Files that are already plaintext are left alone.
// A file that cannot be copied does not stop the rest; every copied
// sensitive file is decrypted either way.
func (s *Store) Install(name string, liveRoot string, layout Layout) error {
	src, err := s.path(name)
	if err != nil {
		return err
	}
	if !s.Exists(name) {
		return fmt.Errorf("archive %s: %w", src, core.ErrDirectoryNotFound)
	}

	var errs error
	if err := copyDir(src, liveRoot); err != nil {
		multierr.AppendInto(&errs, fmt.Errorf("installing %s: %w", name, err))
	}
	if s.sealer == nil {
		return errs
	}
	for _, rel := range expandGlobs(liveRoot, layout.Sensitive) {
		err := s.sealer.DecryptFile(filepath.Join(liveRoot, rel))
		if err != nil && !errors.Is(err, crypt.ErrNotEncrypted) {
			multierr.AppendInto(&errs, fmt.Errorf("decrypting %s: %w", rel, err))
		}
	}
	if errs != nil {
		s.logger.Warn("install incomplete", zap.String("identity", name), zap.Error(errs))
	}
	return errs
}

// Clear deletes the live layout. Every part is attempted; failures are
// returned together.
func (s *Store) Clear(liveRoot string, layout Layout) error {
	var errs error
	remove := func(path string, all bool) {
		var err error
		if all {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not delete live data", zap.String("path", path), zap.Error(err))
			multierr.AppendInto(&errs, err)
		}
	}
	for _, rel := range layout.Files {
		remove(filepath.Join(liveRoot, filepath.FromSlash(rel)), false)
	}
	for _, rel := range layout.Folders {
		remove(filepath.Join(liveRoot, filepath.FromSlash(rel)), true)
	}
	for _, rel := range expandGlobs(liveRoot, layout.Globs) {
		remove(filepath.Join(liveRoot, rel), false)
	}
	return errs
}

// Rename moves the archive directory. A missing source is not an error
// since not every indexed identity has an archive yet.
func (s *Store) Rename(oldName, newName string) error {
	oldDir, err := s.path(oldName)
	if err != nil {
		return err
	}
	newDir, err := s.path(newName)
	if err != nil {
		return err
	}
	if oldName == newName || !s.Exists(oldName) {
		return nil
	}
	if s.Exists(newName) {
		return fmt.Errorf("archive %s: %w", newName, core.ErrDuplicateName)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("renaming archive: %w", err)
	}
	return nil
}

func (s *Store) Delete(name string) error {
	dir, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting archive %s: %w", name, err)
	}
	return nil
}

// expandGlobs returns the files under root matching patterns, as paths
// relative to root.
func expandGlobs(root string, patterns []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(root, m)
			if err != nil || seen[rel] {
				continue
			}
			seen[rel] = true
			out = append(out, rel)
		}
	}
	return out
}

func copyIfExists(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst, info.Mode().Perm())
}

// copyDir copies the tree at src into dst. Entries that fail are collected
// and skipped; a directory that cannot be created or read is skipped whole.
func copyDir(src, dst string) error {
	var errs error
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == src {
				return err
			}
			multierr.AppendInto(&errs, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			multierr.AppendInto(&errs, err)
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				multierr.AppendInto(&errs, err)
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			multierr.AppendInto(&errs, err)
			return nil
		}
		multierr.AppendInto(&errs, copyFile(path, target, info.Mode().Perm()))
		return nil
	})
	return multierr.Append(walkErr, errs)
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, MarkLocked(err))
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0o200)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, MarkLocked(err))
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, MarkLocked(err))
	}
	return out.Close()
}
