//go:build !unix && !windows

package process

import (
	"fmt"
	"runtime"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

type unsupportedBackend struct{}

func newSystemBackend() Backend { return unsupportedBackend{} }

func (unsupportedBackend) IsElevated() bool { return false }

func (unsupportedBackend) IsProcessElevated(string) (bool, error) { return false, errUnsupported() }

func (unsupportedBackend) Running(string) (bool, error) { return false, errUnsupported() }

func (unsupportedBackend) Kill(string, core.StopMethod) error { return errUnsupported() }

func (unsupportedBackend) StartDirect(string, bool, string) error { return errUnsupported() }

func (unsupportedBackend) StartAsDesktopUser(string, string) error { return errUnsupported() }

func errUnsupported() error {
	return fmt.Errorf("process control is unsupported on %s", runtime.GOOS)
}
