package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/platform"
)

// resolve derives the live key, retrying while the launcher holds its
// files locked. With mayStop set the processes are force-stopped before the
// last attempts; stopped reports whether that stopped a running launcher.
// Running out of attempts counts as nobody being logged in.
func (e *Engine) resolve(ctx context.Context, t target, ks platform.KeySource, mayStop bool) (key string, stopped bool, err error) {
	attempts := max(e.LockAttempts, 1)
	attempt := 0
	forced := false
	op := func() (string, error) {
		attempt++
		if mayStop && !forced && attempt >= e.ForceStopFrom {
			forced = true
			running := e.anyRunning(t.spec.Processes)
			if err := e.d.Processes.Stop(ctx, t.spec.Processes, core.StopForceful); err != nil {
				return "", backoff.Permanent(fmt.Errorf("stopping %s to read its files: %w", t.spec.Name, err))
			}
			stopped = running
		}
		k, err := ks.Resolve(t.liveRoot())
		if err == nil {
			return k, nil
		}
		if errors.Is(err, core.ErrFileLocked) {
			e.logger.Debug("live files locked", zap.String("platform", t.spec.ID), zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	key, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.LockInterval)),
		backoff.WithMaxTries(uint(attempts)),
	)
	if err != nil && errors.Is(err, core.ErrFileLocked) {
		e.warn(t.spec.ID, "live files stayed locked, treating as logged out", err)
		return "", stopped, core.ErrNoIdentity
	}
	return key, stopped, err
}

func (e *Engine) anyRunning(names []string) bool {
	for _, name := range names {
		if ok, err := e.d.Processes.Running(name); err == nil && ok {
			return true
		}
	}
	return false
}
