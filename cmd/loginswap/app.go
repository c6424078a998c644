package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/config"
	"github.com/janekbaraniewski/loginswap/internal/crypt"
	"github.com/janekbaraniewski/loginswap/internal/history"
	"github.com/janekbaraniewski/loginswap/internal/platform"
	"github.com/janekbaraniewski/loginswap/internal/process"
	"github.com/janekbaraniewski/loginswap/internal/recent"
	"github.com/janekbaraniewski/loginswap/internal/registry"
	"github.com/janekbaraniewski/loginswap/internal/settings"
	"github.com/janekbaraniewski/loginswap/internal/swap"
)

// app wires the engine and its collaborators for one CLI invocation.
type app struct {
	cfg      config.Config
	out      io.Writer
	logger   *zap.Logger
	catalog  *platform.Catalog
	settings *settings.Store
	recent   *recent.List
	history  *history.Store
	procs    *process.Manager
	engine   *swap.Engine
}

func newLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	logger := newLogger(cfg.Debug)

	catalog, err := platform.Load(config.PlatformsPath())
	if err != nil {
		return nil, err
	}

	passphrase, err := config.Passphrase(cfg.PassphrasePath())
	if err != nil {
		return nil, err
	}
	cipher, err := crypt.New(passphrase)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		out:      out,
		logger:   logger,
		catalog:  catalog,
		settings: settings.NewStore(cfg.SettingsDir(), cfg.CrashNotePath(), logger),
		recent:   recent.New(cfg.RecentPath()),
		procs:    process.NewSystemManager(logger),
	}
	notifier := &cliNotifier{out: out, catalog: catalog}
	a.procs.OnWait = notifier.waiting

	deps := swap.Deps{
		Catalog:    catalog,
		Settings:   a.settings,
		Processes:  a.procs,
		Registry:   registry.NewUserStore(),
		Sealer:     cipher,
		Recent:     a.recent,
		Notifier:   notifier,
		Logger:     logger,
		CacheRoot:  cfg.CacheDir,
		ImagesRoot: cfg.ImagesDir(),
	}

	// History is a convenience; the tool works without it.
	if store, err := openHistory(ctx, cfg); err != nil {
		logger.Warn("history disabled", zap.Error(err))
	} else {
		a.history = store
		deps.History = store
	}

	a.engine = swap.New(deps)
	return a, nil
}

func openHistory(ctx context.Context, cfg config.Config) (*history.Store, error) {
	store, err := history.OpenStore(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if cfg.HistoryDays > 0 {
		if _, err := store.Prune(ctx, time.Duration(cfg.HistoryDays)*24*time.Hour); err != nil {
			store.Close()
			return nil, fmt.Errorf("pruning history: %w", err)
		}
	}
	return store, nil
}

func (a *app) Close() {
	if a.history != nil {
		_ = a.history.Close()
	}
	_ = a.logger.Sync()
}

// platformSettings loads the typed settings of a platform.
func (a *app) platformSettings(id string) (platform.Spec, settings.Platform, error) {
	spec, err := a.catalog.Get(id)
	if err != nil {
		return platform.Spec{}, settings.Platform{}, err
	}
	p, err := a.settings.LoadPlatform(spec.ID, a.engine.Defaults(spec))
	return spec, p, err
}

func (a *app) cacheDir(spec platform.Spec) string {
	return filepath.Join(a.cfg.CacheDir, spec.ID)
}
