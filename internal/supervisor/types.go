package supervisor

import (
	"context"
	"io"
)

// State represents the lifecycle state of a supervised process
type State int

const (
	// Stopped - no OS process exists
	Stopped State = iota
	// Running - an OS process exists and is being watched
	Running
	// Killing - a kill or restart was requested and the exit is pending
	Killing
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Killing:
		return "Killing"
	default:
		return "Unknown"
	}
}

// MaxRestarts is the default number of automatic restarts after crashes.
const MaxRestarts = 5

// Record describes the process a Process supervises.
type Record struct {
	ID          string
	Name        string
	Dir         string
	Filename    string
	Args        []string
	Env         map[string]string
	Detached    bool
	AutoRestart bool
	UseShell    bool
}

// ExitStatus is how a process ended. Signal is set when the process was
// terminated by a signal, in which case Code carries no meaning.
type ExitStatus struct {
	Code   int
	Signal string
}

// Crashed reports whether the exit counts as a crash for auto restart.
func (e ExitStatus) Crashed() bool {
	return e.Signal == "" && e.Code != 0
}

// Output is a single line relayed from a supervised process.
type Output struct {
	Source  string
	Content string
}

// Listener receives the events of one Process. Nil callbacks are skipped.
type Listener struct {
	OnOutput func(Output)
	OnChange func(State)
	OnExit   func(ExitStatus)
}

// Command is what a Starter is asked to run.
type Command struct {
	Filename string
	Args     []string
	Dir      string
	Env      []string
	Detached bool
	Shell    bool
}

// Handle is a started OS process.
type Handle interface {
	Pid() int
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process exits. Output readers reach EOF once
	// Wait has returned.
	Wait() ExitStatus
}

// Starter starts OS processes.
type Starter interface {
	Start(cmd Command) (Handle, error)
}

// ProcessTree enumerates and signals processes.
type ProcessTree interface {
	// Descendants returns every transitive child of pid.
	Descendants(ctx context.Context, pid int) ([]int, error)
	// Signal asks pid to terminate.
	Signal(pid int) error
}
