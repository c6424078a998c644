// Package process stops and starts launcher processes.
//
// Manager implements the platform-independent protocol (permission check,
// kill, bounded liveness polling, elevation-aware launch) on top of a
// Backend that hides the OS mechanics.
package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 10
)

// Controller is what the swap engine needs from a process manager.
type Controller interface {
	Stop(ctx context.Context, names []string, method core.StopMethod) error
	Start(ctx context.Context, path string, elevate bool, args string) error
	Running(name string) (bool, error)
}

// Backend abstracts the OS-specific process operations.
type Backend interface {
	// IsElevated reports whether this process runs with administrative rights.
	IsElevated() bool
	// IsProcessElevated reports whether any running process with the given
	// image name runs with administrative rights.
	IsProcessElevated(name string) (bool, error)
	Running(name string) (bool, error)
	Kill(name string, method core.StopMethod) error
	// StartDirect launches path, elevated if requested. A dismissed
	// elevation prompt returns core.ErrLaunchCancelled.
	StartDirect(path string, elevate bool, args string) error
	// StartAsDesktopUser launches path with the interactive desktop user's
	// privileges from an elevated process.
	StartAsDesktopUser(path string, args string) error
}

// StopTimeoutError lists the processes still alive after the stop deadline.
type StopTimeoutError struct {
	Survivors []string
	Waited    time.Duration
}

func (e *StopTimeoutError) Error() string {
	return fmt.Sprintf("could not close %s within %s", strings.Join(e.Survivors, ", "), e.Waited)
}

func (e *StopTimeoutError) Unwrap() error { return core.ErrStopTimeout }

type Manager struct {
	backend      Backend
	logger       *zap.Logger
	PollInterval time.Duration
	MaxPolls     int
	// OnWait is called before every liveness poll sleep; useful for status
	// lines such as "waiting for steam.exe to close (3/10)".
	OnWait func(names []string, attempt, max int)

	sleep func(ctx context.Context, d time.Duration) error
}

func NewManager(backend Backend, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend:      backend,
		logger:       logger,
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
		sleep:        sleepCtx,
	}
}

// NewSystemManager returns a Manager over the backend for the running OS.
func NewSystemManager(logger *zap.Logger) *Manager {
	return NewManager(newSystemBackend(), logger)
}

// MatchName reports whether a process image name from the OS listing refers
// to the configured process name. Matching ignores case and a trailing
// ".exe", and accepts the 15-character truncation Linux applies to comm.
func MatchName(image, name string) bool {
	image = strings.ToLower(strings.TrimSpace(image))
	name = strings.ToLower(strings.TrimSpace(name))
	if image == "" || name == "" {
		return false
	}
	if image == name {
		return true
	}
	bareImage := strings.TrimSuffix(image, ".exe")
	bareName := strings.TrimSuffix(name, ".exe")
	if bareImage == bareName {
		return true
	}
	return len(bareImage) == 15 && strings.HasPrefix(bareName, bareImage)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) Running(name string) (bool, error) {
	return m.backend.Running(name)
}

// CanStop reports whether every running process in names can be terminated
// by this process.
func (m *Manager) CanStop(names []string) (bool, error) {
	if m.backend.IsElevated() {
		return true, nil
	}
	for _, name := range names {
		elevated, err := m.backend.IsProcessElevated(name)
		if err != nil {
			return false, fmt.Errorf("checking elevation of %s: %w", name, err)
		}
		if elevated {
			m.logger.Info("process runs elevated, cannot stop it", zap.String("process", name))
			return false, nil
		}
	}
	return true, nil
}

// Stop kills every named process and waits until all of them are gone.
// Processes that are not running are ignored.
func (m *Manager) Stop(ctx context.Context, names []string, method core.StopMethod) error {
	if len(names) == 0 {
		return nil
	}
	m.logger.Debug("closing processes", zap.Strings("processes", names), zap.Stringer("method", method))

	ok, err := m.CanStop(names)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stop %s: %w", strings.Join(names, ", "), core.ErrStopPermission)
	}

	for _, name := range names {
		running, err := m.backend.Running(name)
		if err != nil {
			return fmt.Errorf("checking %s: %w", name, err)
		}
		if !running {
			continue
		}
		if err := m.backend.Kill(name, method); err != nil {
			m.logger.Warn("kill failed", zap.String("process", name), zap.Error(err))
		}
	}

	return m.waitForClose(ctx, names)
}

func (m *Manager) waitForClose(ctx context.Context, names []string) error {
	for attempt := 0; ; attempt++ {
		survivors, err := m.survivors(names)
		if err != nil {
			return err
		}
		if len(survivors) == 0 {
			return nil
		}
		if attempt >= m.MaxPolls {
			m.logger.Warn("processes still running after timeout", zap.Strings("processes", survivors))
			return &StopTimeoutError{
				Survivors: survivors,
				Waited:    time.Duration(m.MaxPolls) * m.PollInterval,
			}
		}
		if m.OnWait != nil {
			m.OnWait(survivors, attempt+1, m.MaxPolls)
		}
		if err := m.sleep(ctx, m.PollInterval); err != nil {
			return err
		}
	}
}

func (m *Manager) survivors(names []string) ([]string, error) {
	var out []string
	for _, name := range names {
		running, err := m.backend.Running(name)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", name, err)
		}
		if running {
			out = append(out, name)
		}
	}
	return out, nil
}

// Start launches path. When this process is elevated but the target should
// not be, the launch goes through the desktop user's token instead.
func (m *Manager) Start(_ context.Context, path string, elevate bool, args string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("start: executable path is empty")
	}

	var err error
	if !elevate && m.backend.IsElevated() {
		m.logger.Debug("starting as desktop user", zap.String("path", path))
		err = m.backend.StartAsDesktopUser(path, args)
	} else {
		m.logger.Debug("starting", zap.String("path", path), zap.Bool("elevated", elevate))
		err = m.backend.StartDirect(path, elevate, args)
	}
	if errors.Is(err, core.ErrLaunchCancelled) {
		m.logger.Info("launch cancelled at elevation prompt", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	return nil
}
