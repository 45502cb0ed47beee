package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrProcessGone is returned by ProcessTree.Signal for a process that has
// already exited.
var ErrProcessGone = errors.New("process already exited")

// KillTree signals every descendant of pid, deepest first, and pid itself
// last. Processes that are already gone are not errors.
func KillTree(ctx context.Context, tree ProcessTree, pid int) error {
	descendants, err := tree.Descendants(ctx, pid)
	if err != nil {
		return fmt.Errorf("list descendants of %d: %w", pid, err)
	}

	var errs []error
	signal := func(target int) {
		if err := tree.Signal(target); err != nil && !errors.Is(err, ErrProcessGone) {
			errs = append(errs, fmt.Errorf("signal %d: %w", target, err))
		}
	}
	for i := len(descendants) - 1; i >= 0; i-- {
		signal(descendants[i])
	}
	signal(pid)
	return errors.Join(errs...)
}

// SystemTree is the ProcessTree of the host, read through gopsutil.
type SystemTree struct{}

// Descendants walks the parent links of all host processes breadth first,
// so parents always precede their children in the result.
func (SystemTree) Descendants(ctx context.Context, pid int) ([]int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	children := make(map[int32][]int32)
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue // exited while listing
		}
		children[ppid] = append(children[ppid], p.Pid)
	}

	var out []int
	seen := map[int32]bool{int32(pid): true}
	queue := []int32{int32(pid)}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, int(c))
			queue = append(queue, c)
		}
	}
	return out, nil
}
