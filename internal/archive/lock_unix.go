//go:build unix

package archive

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

// MarkLocked tags errors caused by another process holding the file open
// with core.ErrFileLocked. Unix files are rarely locked against reading;
// ETXTBSY and EWOULDBLOCK are the cases that surface.
func MarkLocked(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ETXTBSY) || errors.Is(err, unix.EWOULDBLOCK) {
		return fmt.Errorf("%w: %w", core.ErrFileLocked, err)
	}
	return err
}
