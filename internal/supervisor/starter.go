package supervisor

import (
	"io"
	"os/exec"
	"strings"
	"time"
)

const defaultWaitDelay = 2 * time.Second

// ExecStarter starts host processes with os/exec.
type ExecStarter struct {
	// WaitDelay bounds how long Wait keeps the output pipes open after the
	// process exited while grandchildren still hold them.
	WaitDelay time.Duration
}

// Start launches c. In shell mode Filename and Args are joined into a single
// command line for the host shell.
func (s ExecStarter) Start(c Command) (Handle, error) {
	var cmd *exec.Cmd
	if c.Shell {
		cmd = shellCommand(strings.TrimSpace(c.Filename + " " + strings.Join(c.Args, " ")))
	} else {
		cmd = exec.Command(c.Filename, c.Args...)
	}
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if c.Detached {
		setDetached(cmd)
	}
	cmd.WaitDelay = s.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		return nil, err
	}
	return &execHandle{cmd: cmd, stdout: outR, stderr: errR, stdoutW: outW, stderrW: errW}, nil
}

type execHandle struct {
	cmd              *exec.Cmd
	stdout, stderr   *io.PipeReader
	stdoutW, stderrW *io.PipeWriter
}

func (h *execHandle) Pid() int          { return h.cmd.Process.Pid }
func (h *execHandle) Stdout() io.Reader { return h.stdout }
func (h *execHandle) Stderr() io.Reader { return h.stderr }

func (h *execHandle) Wait() ExitStatus {
	_ = h.cmd.Wait()
	h.stdoutW.Close()
	h.stderrW.Close()
	if h.cmd.ProcessState == nil {
		return ExitStatus{Code: -1}
	}
	return exitStatus(h.cmd.ProcessState)
}

