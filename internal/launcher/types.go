package launcher

import (
	"maps"
	"slices"
	"strings"

	"github.com/harshul/relic/internal/platform"
)

const (
	messageSentinel = ":message:"
	extrasSentinel  = ":extras:"
)

// LaunchInfo is the invocation a launch resolves to. Middleware receive and
// return it; the final value is what gets executed.
type LaunchInfo struct {
	ExecutablePath string
	Arguments      []string
	UseCompatLayer bool
	Env            map[string]string
	Dir            string
	UseShell       bool
}

// Clone returns a deep copy of info.
func (info LaunchInfo) Clone() LaunchInfo {
	info.Arguments = slices.Clone(info.Arguments)
	info.Env = maps.Clone(info.Env)
	return info
}

// Title is a launchable catalog entry.
type Title struct {
	ID              string
	Name            string
	ApplicationPath string
	LaunchCommand   string
	// Placeholder titles exist in the catalog but have nothing to launch.
	Placeholder    bool
	AdditionalRuns []AdditionalRun
}

// AdditionalRun is an auxiliary launch attached to a title.
type AdditionalRun struct {
	ID            string
	Name          string
	Action        RunAction
	AutoRunBefore bool
	WaitForExit   bool
}

// RunAction is what an AdditionalRun does: NormalLaunch, ShowMessage or
// OpenExternal.
type RunAction interface {
	isRunAction()
}

// NormalLaunch starts Path with the raw argument string Args.
type NormalLaunch struct {
	Path string
	Args string
}

// ShowMessage shows Text in a dialog.
type ShowMessage struct {
	Text        string
	WaitForExit bool
}

// OpenExternal opens Path, relative to the Extras folder of the root.
type OpenExternal struct {
	Path string
}

func (NormalLaunch) isRunAction() {}
func (ShowMessage) isRunAction()  {}
func (OpenExternal) isRunAction() {}

// ParseRunAction decides once what an additional run with the given
// application path and launch command does.
func ParseRunAction(applicationPath, launchCommand string, waitForExit bool) RunAction {
	switch applicationPath {
	case messageSentinel:
		return ShowMessage{Text: launchCommand, WaitForExit: waitForExit}
	case extrasSentinel:
		return OpenExternal{Path: launchCommand}
	default:
		return NormalLaunch{Path: applicationPath, Args: launchCommand}
	}
}

// PathOverride substitutes Override for Path when Enabled.
type PathOverride struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Override string `yaml:"override" mapstructure:"override"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// BrowserPreferences configure browser-embedded launches.
type BrowserPreferences struct {
	// Executable runs the embedded browser. Empty means the running binary.
	Executable string
	// Args are placed before the browser mode arguments.
	Args []string
	// StripEnv lists variables removed from the browser environment.
	StripEnv []string
}

// Preferences are the user settings a launch depends on.
type Preferences struct {
	Root         string
	Proxy        string
	EnvPath      string
	Native       bool
	ExecMappings []platform.ExecMapping
	Overrides    []PathOverride
	Browser      BrowserPreferences
}

// DefaultStripEnv is removed from browser launches when no list is configured.
var DefaultStripEnv = []string{"ELECTRON_RUN_AS_NODE"}

func (p Preferences) override(path string) string {
	for _, o := range p.Overrides {
		if o.Enabled && o.Path == path {
			return o.Override
		}
	}
	return path
}

// fixSlashes converts separators to the ones of plat.
func fixSlashes(plat platform.Platform, path string) string {
	if plat == platform.Windows {
		return strings.ReplaceAll(path, "/", `\`)
	}
	return strings.ReplaceAll(path, `\`, "/")
}

func isAbs(plat platform.Platform, path string) bool {
	if plat == platform.Windows {
		if strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//") {
			return true
		}
		return len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
	}
	return strings.HasPrefix(path, "/")
}

// absPath resolves path against root unless it is already absolute.
func absPath(plat platform.Platform, root, path string) string {
	if isAbs(plat, path) || root == "" {
		return fixSlashes(plat, path)
	}
	sep := "/"
	if plat == platform.Windows {
		sep = `\`
	}
	return fixSlashes(plat, strings.TrimRight(root, `/\`)+sep+path)
}
