//go:build unix

package supervisor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Signal sends SIGTERM to pid.
func (SystemTree) Signal(pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		return ErrProcessGone
	}
	return err
}
