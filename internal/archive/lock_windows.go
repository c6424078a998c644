//go:build windows

package archive

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

// MarkLocked tags errors caused by another process holding the file open
// with core.ErrFileLocked.
func MarkLocked(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return fmt.Errorf("%w: %w", core.ErrFileLocked, err)
	}
	return err
}
