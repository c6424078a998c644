// Package swap moves launcher logins between the live data directory and
// per-identity archives.
package swap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/archive"
	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/history"
	"github.com/janekbaraniewski/loginswap/internal/identity"
	"github.com/janekbaraniewski/loginswap/internal/platform"
	"github.com/janekbaraniewski/loginswap/internal/process"
	"github.com/janekbaraniewski/loginswap/internal/recent"
	"github.com/janekbaraniewski/loginswap/internal/registry"
	"github.com/janekbaraniewski/loginswap/internal/settings"
)

const (
	DefaultLockAttempts  = 5
	DefaultLockInterval  = time.Second
	DefaultForceStopFrom = 3
)

// Deps are the collaborators of an Engine. Registry, Sealer, Recent,
// History, Notifier and Logger are optional.
type Deps struct {
	Catalog   *platform.Catalog
	Settings  *settings.Store
	Processes process.Controller
	Registry  registry.Store
	Sealer    archive.Sealer
	Recent    *recent.List
	History   history.Recorder
	Notifier  Notifier
	Logger    *zap.Logger

	// CacheRoot holds one directory per platform with the archives, the
	// identity index and the display order.
	CacheRoot string
	// ImagesRoot holds one directory of profile images per platform.
	ImagesRoot string
}

type Engine struct {
	d Deps

	// LockAttempts bounds key resolution while the launcher holds its files;
	// from attempt ForceStopFrom on the processes are stopped first.
	LockAttempts  int
	LockInterval  time.Duration
	ForceStopFrom int

	logger   *zap.Logger
	notifier Notifier
	sources  map[string]platform.KeySource
}

func New(d Deps) *Engine {
	e := &Engine{
		d:             d,
		LockAttempts:  DefaultLockAttempts,
		LockInterval:  DefaultLockInterval,
		ForceStopFrom: DefaultForceStopFrom,
		logger:        d.Logger,
		notifier:      d.Notifier,
		sources:       map[string]platform.KeySource{},
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.d.Registry == nil {
		e.d.Registry = registry.NewMemory()
	}
	return e
}

// target bundles everything an operation needs about one platform.
type target struct {
	spec     platform.Spec
	cfg      settings.Platform
	archives *archive.Store
	images   *archive.Images
	dir      string
}

func (t target) indexPath() string { return filepath.Join(t.dir, identity.IndexFile) }
func (t target) orderPath() string { return filepath.Join(t.dir, identity.OrderFile) }
func (t target) liveRoot() string  { return t.spec.LiveRootPath() }

func (e *Engine) load(platformID string) (target, error) {
	spec, err := e.d.Catalog.Get(platformID)
	if err != nil {
		return target{}, err
	}
	cfg, err := e.d.Settings.LoadPlatform(spec.ID, e.Defaults(spec))
	if err != nil {
		return target{}, err
	}
	dir := filepath.Join(e.d.CacheRoot, spec.ID)
	return target{
		spec:     spec,
		cfg:      cfg,
		archives: archive.NewStore(dir, e.d.Sealer, e.logger),
		images:   archive.NewImages(filepath.Join(e.d.ImagesRoot, spec.ID), e.logger),
		dir:      dir,
	}, nil
}

// Defaults returns the settings a platform starts with.
func (e *Engine) Defaults(spec platform.Spec) settings.Platform {
	return settings.DefaultPlatform(spec.DefaultFolderPath(), spec.Extras)
}

func (e *Engine) keySource(spec platform.Spec) (platform.KeySource, error) {
	if ks, ok := e.sources[spec.ID]; ok {
		return ks, nil
	}
	ks, err := platform.NewKeySource(spec, e.d.Registry)
	if err != nil {
		return nil, err
	}
	e.sources[spec.ID] = ks
	return ks, nil
}

func (e *Engine) status(id string, s State) {
	e.logger.Debug("swap state", zap.String("platform", id), zap.Stringer("state", s))
	e.notifier.Status(id, s)
}

func (e *Engine) warn(id, msg string, err error) {
	e.logger.Warn(msg, zap.String("platform", id), zap.Error(err))
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	e.notifier.Notify(id, LevelWarn, msg)
}

func (e *Engine) record(ctx context.Context, ev history.Event, err error, partial bool) {
	if e.d.History == nil {
		return
	}
	switch {
	case err != nil:
		ev.Outcome = history.OutcomeFailed
		ev.Detail = err.Error()
	case partial:
		ev.Outcome = history.OutcomePartial
	default:
		ev.Outcome = history.OutcomeOK
	}
	if rerr := e.d.History.Record(ctx, ev); rerr != nil {
		e.logger.Warn("recording history failed", zap.Error(rerr))
	}
}

// Swap stops the platform, archives whoever is logged in, clears the live
// data, installs targetName (when not empty) and starts the platform again.
// Only a failed stop and a missing target archive abort the swap.
func (e *Engine) Swap(ctx context.Context, platformID, targetName, args string) (err error) {
	if targetName != "" {
		if err := core.ValidateDisplayName(targetName); err != nil {
			return err
		}
	}
	t, err := e.load(platformID)
	if err != nil {
		return err
	}
	id := t.spec.ID
	partial := false
	defer func() {
		e.record(ctx, history.Event{Platform: id, Action: history.ActionSwap, Identity: targetName}, err, partial)
	}()
	defer e.status(id, Idle)

	e.status(id, StoppingProcess)
	method := core.StopForceful
	if t.cfg.AltClose {
		method = core.StopGraceful
	}
	if err := e.d.Processes.Stop(ctx, t.spec.Processes, method); err != nil {
		return fmt.Errorf("stopping %s: %w", t.spec.Name, err)
	}

	e.status(id, CapturingCurrent)
	if err := e.captureLive(ctx, t); err != nil {
		partial = true
		e.warn(id, "could not save the current login", err)
	}

	if targetName != "" && !t.archives.Exists(targetName) {
		return fmt.Errorf("identity %q: %w", targetName, core.ErrDirectoryNotFound)
	}

	e.status(id, ClearingLive)
	if err := e.clearLive(t); err != nil {
		partial = true
	}
	if err := t.setLive(""); err != nil {
		e.logger.Warn("live marker", zap.Error(err))
	}

	if targetName != "" {
		e.status(id, InstallingTarget)
		if err := e.install(t, targetName); err != nil {
			if errors.Is(err, core.ErrDirectoryNotFound) {
				return err
			}
			partial = true
			e.warn(id, "install incomplete", err)
		}
	}

	e.status(id, StartingProcess)
	if err := e.start(ctx, t, args); err != nil {
		return err
	}
	e.logger.Info("swapped", zap.String("platform", id), zap.String("identity", targetName), zap.Bool("partial", partial))
	return nil
}

// captureLive archives the identity that is logged in right now. Nobody
// logged in, or an identity without a display name, is not an error.
func (e *Engine) captureLive(ctx context.Context, t target) error {
	name := ""
	key := ""
	if t.spec.Indexed() {
		ks, err := e.keySource(t.spec)
		if err != nil {
			return err
		}
		key, _, err = e.resolve(ctx, t, ks, true)
		if err != nil {
			if errors.Is(err, core.ErrNoIdentity) {
				return nil
			}
			return err
		}
		name = identity.LoadIndex(t.indexPath())[key]
		if name == "" {
			e.logger.Info("logged-in identity is not saved yet", zap.String("platform", t.spec.ID))
			return nil
		}
	} else {
		name = t.lastInstalled()
		if name == "" || !t.archives.Exists(name) {
			return nil
		}
	}
	return e.capture(ctx, t, key, name, "")
}

// capture copies the live layout into the archive for name, records the key
// in the index and makes sure there is a profile image.
func (e *Engine) capture(ctx context.Context, t target, key, name, imageURL string) error {
	if err := t.archives.Capture(t.liveRoot(), t.spec.Layout, name); err != nil {
		return fmt.Errorf("capturing %q: %w", name, err)
	}
	if err := t.setLive(name); err != nil {
		e.logger.Warn("live marker", zap.Error(err))
	}
	if key != "" {
		idx := identity.LoadIndex(t.indexPath())
		if err := idx.Set(key, name); err != nil {
			return err
		}
		if err := identity.SaveIndex(t.indexPath(), idx); err != nil {
			return err
		}
	}
	if _, err := t.images.Ensure(ctx, name, imageURL, t.cfg.ImageExpiry()); err != nil {
		e.logger.Warn("profile image", zap.String("identity", name), zap.Error(err))
	}
	return nil
}

func (e *Engine) clearLive(t target) error {
	err := t.archives.Clear(t.liveRoot(), t.spec.Layout)
	if err != nil {
		e.warn(t.spec.ID, "some live files could not be deleted", err)
	}
	if reg := t.spec.Registry; reg != nil {
		if rerr := e.d.Registry.Delete(reg.Path, reg.Value); rerr != nil && !errors.Is(rerr, core.ErrNotFound) {
			e.warn(t.spec.ID, "could not reset registry value", rerr)
			if err == nil {
				err = rerr
			}
		}
	}
	return err
}

func (e *Engine) install(t target, name string) error {
	err := t.archives.Install(name, t.liveRoot(), t.spec.Layout)
	if errors.Is(err, core.ErrDirectoryNotFound) {
		return err
	}
	if lerr := t.setLive(name); lerr != nil {
		e.logger.Warn("live marker", zap.Error(lerr))
	}

	if reg := t.spec.Registry; reg != nil && t.spec.Indexed() {
		key, kerr := identity.LoadIndex(t.indexPath()).KeyFor(name)
		switch {
		case kerr != nil:
			e.warn(t.spec.ID, "could not restore registry value", kerr)
		default:
			if serr := e.d.Registry.Set(reg.Path, reg.Value, key); serr != nil {
				e.warn(t.spec.ID, "could not restore registry value", serr)
			}
		}
	}

	if e.d.Recent != nil {
		if rerr := e.d.Recent.Add(t.spec.ID, recent.Entry{Name: name, Arg: name}, t.cfg.TrayAccountCount); rerr != nil {
			e.logger.Warn("updating recent list", zap.Error(rerr))
		}
	}
	return err
}

func (e *Engine) start(ctx context.Context, t target, extraArgs string) error {
	args := strings.TrimSpace(strings.Join([]string{t.spec.Args(t.cfg.Extras), extraArgs}, " "))
	exe := t.spec.ExePath(t.cfg.FolderPath)
	if err := e.d.Processes.Start(ctx, exe, t.cfg.Admin, args); err != nil {
		return fmt.Errorf("starting %s: %w", t.spec.Name, err)
	}
	return nil
}

// CaptureCurrent saves the identity logged in right now under name. The
// launcher is restarted if it had to be stopped to read its files.
func (e *Engine) CaptureCurrent(ctx context.Context, platformID, name, imageURL string) (err error) {
	if err := core.ValidateDisplayName(name); err != nil {
		return err
	}
	t, err := e.load(platformID)
	if err != nil {
		return err
	}
	defer func() {
		e.record(ctx, history.Event{Platform: t.spec.ID, Action: history.ActionCapture, Identity: name}, err, false)
	}()

	if !t.spec.Indexed() {
		return e.capture(ctx, t, "", name, imageURL)
	}

	ks, err := e.keySource(t.spec)
	if err != nil {
		return err
	}
	key, stopped, err := e.resolve(ctx, t, ks, true)
	if stopped {
		defer func() {
			if serr := e.start(ctx, t, ""); serr != nil {
				e.warn(t.spec.ID, "could not restart launcher", serr)
			}
		}()
	}
	if err != nil {
		return err
	}

	idx := identity.LoadIndex(t.indexPath())
	if owner, kerr := idx.KeyFor(name); kerr == nil && owner != key {
		return fmt.Errorf("identity %q: %w", name, core.ErrDuplicateName)
	}
	if old, ok := idx[key]; ok && old != name {
		if err := e.moveAside(t, old, name); err != nil {
			return err
		}
	}
	return e.capture(ctx, t, key, name, imageURL)
}

// moveAside drops the archive of a key that is being recaptured under a new
// name and carries its image, order slot and recent entry over.
func (e *Engine) moveAside(t target, oldName, newName string) error {
	if err := t.archives.Delete(oldName); err != nil {
		return err
	}
	if err := t.images.Rename(oldName, newName); err != nil {
		e.logger.Warn("renaming image", zap.Error(err))
	}
	return e.renameRefs(t, oldName, newName)
}

func (e *Engine) renameRefs(t target, oldName, newName string) error {
	if t.lastInstalled() == oldName {
		if err := t.setLive(newName); err != nil {
			return err
		}
	}
	if err := identity.RenameInOrder(t.orderPath(), oldName, newName); err != nil {
		return err
	}
	if e.d.Recent != nil {
		return e.d.Recent.Rename(t.spec.ID, oldName, newName)
	}
	return nil
}

// Rename changes a display name everywhere it is used.
func (e *Engine) Rename(ctx context.Context, platformID, oldName, newName string) (err error) {
	if err := core.ValidateDisplayName(oldName); err != nil {
		return err
	}
	if err := core.ValidateDisplayName(newName); err != nil {
		return err
	}
	t, err := e.load(platformID)
	if err != nil {
		return err
	}
	defer func() {
		e.record(ctx, history.Event{Platform: t.spec.ID, Action: history.ActionRename, Identity: newName, Detail: oldName}, err, false)
	}()

	if t.spec.Indexed() {
		idx := identity.LoadIndex(t.indexPath())
		if err := idx.Rename(oldName, newName); err != nil {
			return err
		}
		if err := t.archives.Rename(oldName, newName); err != nil {
			return err
		}
		if err := identity.SaveIndex(t.indexPath(), idx); err != nil {
			return err
		}
	} else {
		if !t.archives.Exists(oldName) {
			return fmt.Errorf("identity %q: %w", oldName, core.ErrNotFound)
		}
		if err := t.archives.Rename(oldName, newName); err != nil {
			return err
		}
	}

	if err := t.images.Rename(oldName, newName); err != nil {
		e.logger.Warn("renaming image", zap.Error(err))
	}
	return e.renameRefs(t, oldName, newName)
}

// Forget deletes an identity's archive, image and every reference to it.
func (e *Engine) Forget(ctx context.Context, platformID, name string) (err error) {
	if err := core.ValidateDisplayName(name); err != nil {
		return err
	}
	t, err := e.load(platformID)
	if err != nil {
		return err
	}
	defer func() {
		e.record(ctx, history.Event{Platform: t.spec.ID, Action: history.ActionForget, Identity: name}, err, false)
	}()

	if t.spec.Indexed() {
		idx := identity.LoadIndex(t.indexPath())
		key, err := idx.KeyFor(name)
		if err != nil {
			return err
		}
		if err := idx.Forget(key); err != nil {
			return err
		}
		if err := identity.SaveIndex(t.indexPath(), idx); err != nil {
			return err
		}
	} else if !t.archives.Exists(name) {
		return fmt.Errorf("identity %q: %w", name, core.ErrNotFound)
	}

	if err := t.archives.Delete(name); err != nil {
		return err
	}
	if t.lastInstalled() == name {
		if err := t.setLive(""); err != nil {
			e.logger.Warn("live marker", zap.Error(err))
		}
	}
	if err := t.images.Delete(name); err != nil {
		e.logger.Warn("deleting image", zap.Error(err))
	}
	if e.d.Recent != nil {
		if err := e.d.Recent.Remove(t.spec.ID, name); err != nil {
			e.logger.Warn("updating recent list", zap.Error(err))
		}
	}
	return identity.RemoveFromOrder(t.orderPath(), name)
}

// List returns the saved identities in display order.
func (e *Engine) List(platformID string) ([]string, error) {
	spec, err := e.d.Catalog.Get(platformID)
	if err != nil {
		return nil, err
	}
	return identity.ListAccounts(filepath.Join(e.d.CacheRoot, spec.ID))
}

func (e *Engine) SaveOrder(ctx context.Context, platformID string, names []string) (err error) {
	spec, err := e.d.Catalog.Get(platformID)
	if err != nil {
		return err
	}
	defer func() {
		e.record(ctx, history.Event{Platform: spec.ID, Action: history.ActionOrder, Detail: strings.Join(names, ",")}, err, false)
	}()
	return identity.SaveOrder(filepath.Join(e.d.CacheRoot, spec.ID, identity.OrderFile), names)
}

// Current resolves the live identity without stopping anything. ok is false
// when nobody is logged in. A logged-in identity that was never saved has
// an empty DisplayName.
func (e *Engine) Current(ctx context.Context, platformID string) (core.Identity, bool, error) {
	t, err := e.load(platformID)
	if err != nil {
		return core.Identity{}, false, err
	}
	if !t.spec.Indexed() {
		name := t.lastInstalled()
		if name == "" || !t.archives.Exists(name) {
			return core.Identity{}, false, nil
		}
		return core.Identity{DisplayName: name, Platform: t.spec.ID}, true, nil
	}

	ks, err := e.keySource(t.spec)
	if err != nil {
		return core.Identity{}, false, err
	}
	key, _, err := e.resolve(ctx, t, ks, false)
	if err != nil {
		if errors.Is(err, core.ErrNoIdentity) {
			return core.Identity{}, false, nil
		}
		return core.Identity{}, false, err
	}
	return core.Identity{
		Key:         key,
		DisplayName: identity.LoadIndex(t.indexPath())[key],
		Platform:    t.spec.ID,
	}, true, nil
}

// KeySource exposes the platform's key source for watching.
func (e *Engine) KeySource(platformID string) (platform.Spec, platform.KeySource, error) {
	spec, err := e.d.Catalog.Get(platformID)
	if err != nil {
		return platform.Spec{}, nil, err
	}
	if !spec.Indexed() {
		return spec, nil, nil
	}
	ks, err := e.keySource(spec)
	return spec, ks, err
}
