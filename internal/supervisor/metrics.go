package supervisor

import "time"

// MetricsCollector receives lifecycle measurements from supervised processes
type MetricsCollector interface {
	// StateTransition records a state change of a process
	StateTransition(id string, from, to State)

	// Restart records an automatic restart after a crash
	Restart(id string)

	// SpawnFailure records a start attempt that failed
	SpawnFailure(id string)

	// TreeKill records how long terminating a process tree took
	TreeKill(id string, duration time.Duration, err error)
}

type noopMetricsCollector struct{}

func (n *noopMetricsCollector) StateTransition(id string, from, to State)             {}
func (n *noopMetricsCollector) Restart(id string)                                     {}
func (n *noopMetricsCollector) SpawnFailure(id string)                                {}
func (n *noopMetricsCollector) TreeKill(id string, duration time.Duration, err error) {}

// NewNoopMetricsCollector creates a metrics collector that discards everything
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
