//go:build windows

package supervisor

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"
)

// Signal terminates pid.
func (SystemTree) Signal(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return ErrProcessGone
	}
	if err != nil {
		return err
	}
	return p.Terminate()
}
