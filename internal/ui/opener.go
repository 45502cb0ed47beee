package ui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/harshul/relic/internal/launcher"
)

// SystemOpener opens paths with the desktop's default application
type SystemOpener struct {
	goos string
}

// NewSystemOpener creates an opener for the running OS
func NewSystemOpener() *SystemOpener {
	return &SystemOpener{goos: runtime.GOOS}
}

// OpenExternal opens path, which must exist
func (o *SystemOpener) OpenExternal(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	name, args := openCommand(o.goos, path)
	if out, err := exec.CommandContext(ctx, name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, out)
	}
	return nil
}

func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

var _ launcher.Opener = (*SystemOpener)(nil)
