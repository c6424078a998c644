// Package detect reports which launchers are installed on the workstation
// and whether they hold a logged-in profile.
package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/janekbaraniewski/loginswap/internal/identity"
	"github.com/janekbaraniewski/loginswap/internal/platform"
)

// DetectedLauncher is what was found for one platform.
type DetectedLauncher struct {
	ID       string
	Name     string
	ExePath  string // resolved launcher executable, "" when not found
	LiveRoot string
	LiveData bool // live root exists and holds at least one layout entry
	Running  bool
	Accounts int // archived identities
}

func (d DetectedLauncher) Installed() bool { return d.ExePath != "" }

type Result struct {
	Launchers []DetectedLauncher
}

// Options supplies the environment-dependent parts of detection.
type Options struct {
	// Folder returns the configured install folder for a platform.
	Folder func(platform.Spec) string
	// Running reports whether a process is running; nil skips the check.
	Running func(name string) (bool, error)
	// CacheRoot holds the per-platform archive directories.
	CacheRoot string
	Logger    *zap.Logger
}

// Detect checks every platform concurrently. Results keep the order of
// specs.
func Detect(ctx context.Context, specs []platform.Spec, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	launchers := make([]DetectedLauncher, len(specs))

	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d := detectOne(spec, opts)
			logger.Debug("detected launcher",
				zap.String("platform", d.ID),
				zap.String("exe", d.ExePath),
				zap.Bool("live_data", d.LiveData),
				zap.Bool("running", d.Running),
				zap.Int("accounts", d.Accounts))
			launchers[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Launchers: launchers}, nil
}

func detectOne(spec platform.Spec, opts Options) DetectedLauncher {
	d := DetectedLauncher{
		ID:       spec.ID,
		Name:     spec.Name,
		LiveRoot: spec.LiveRootPath(),
	}

	folder := spec.DefaultFolderPath()
	if opts.Folder != nil {
		folder = opts.Folder(spec)
	}
	exe := spec.ExePath(folder)
	switch {
	case fileExists(exe):
		d.ExePath = exe
	default:
		// Launchers installed through a package manager sit on PATH.
		d.ExePath = findBinary(filepath.Base(exe))
	}

	if dirExists(d.LiveRoot) {
		for _, rel := range append(append([]string{}, spec.Layout.Files...), spec.Layout.Folders...) {
			if _, err := os.Stat(filepath.Join(d.LiveRoot, filepath.FromSlash(rel))); err == nil {
				d.LiveData = true
				break
			}
		}
	}

	if opts.Running != nil {
		for _, name := range spec.Processes {
			if running, err := opts.Running(name); err == nil && running {
				d.Running = true
				break
			}
		}
	}

	if opts.CacheRoot != "" {
		if names, err := identity.ListAccounts(filepath.Join(opts.CacheRoot, spec.ID)); err == nil {
			d.Accounts = len(names)
		}
	}
	return d
}

// findBinary checks if a binary exists on PATH and returns its full path.
func findBinary(name string) string {
	if name == "" || name == "." {
		return ""
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Summary returns a human-readable summary of what was detected.
func (r Result) Summary() string {
	var sb strings.Builder
	installed := 0
	for _, l := range r.Launchers {
		if l.Installed() || l.LiveData {
			installed++
		}
	}
	if installed == 0 {
		sb.WriteString("No supported launchers detected on this workstation.\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Detected %d launcher(s):\n", installed))
	for _, l := range r.Launchers {
		if !l.Installed() && !l.LiveData {
			continue
		}
		sb.WriteString(fmt.Sprintf("  • %s", l.Name))
		if l.ExePath != "" {
			sb.WriteString(fmt.Sprintf(" at %s", l.ExePath))
		}
		if l.Running {
			sb.WriteString(" (running)")
		}
		if l.LiveData {
			sb.WriteString(", signed-in data present")
		}
		sb.WriteString(fmt.Sprintf(", %d saved account(s)\n", l.Accounts))
	}
	return sb.String()
}
