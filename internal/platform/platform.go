// Package platform turns a resolved executable and its arguments into an
// invocation that is correct for the host operating system, and maps
// Windows-authored executable paths onto their native or compatibility-layer
// equivalents.
package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies a host operating system family.
type Platform string

const (
	Windows Platform = "windows"
	Linux   Platform = "linux"
	Darwin  Platform = "darwin"
)

// ErrUnsupportedPlatform is returned for any platform without a strategy.
// It is a configuration error and should never be retried.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// CompatLauncher is the compatibility layer binary used on POSIX hosts.
const CompatLauncher = "wine"

// Current returns the platform the binary was compiled for.
func Current() Platform {
	return Platform(runtime.GOOS)
}

// IsPOSIX reports whether the platform uses POSIX shell rules.
func (p Platform) IsPOSIX() bool {
	return p == Linux || p == Darwin
}

// Strategy bundles the platform specific decisions of a launch. A strategy
// is selected once and reused for every launch.
type Strategy interface {
	Platform() Platform
	// BuildCommand renders a single command string for the executable.
	BuildCommand(path string, args []string, useCompatLayer, useShell bool) string
	// EscapeArgs escapes each argument for interpolation into a shell string.
	EscapeArgs(args []string) []string
	// ResolveExecPath maps a metadata path to the binary to run on this platform.
	ResolveExecPath(path string, mappings []ExecMapping, native bool) string
}

// ForPlatform returns the strategy for p.
func ForPlatform(p Platform) (Strategy, error) {
	switch p {
	case Windows:
		return windowsStrategy{}, nil
	case Linux, Darwin:
		return posixStrategy{platform: p}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
}

// BuildCommand is a convenience wrapper around ForPlatform(p).BuildCommand.
func BuildCommand(p Platform, path string, args []string, useCompatLayer, useShell bool) (string, error) {
	s, err := ForPlatform(p)
	if err != nil {
		return "", err
	}
	return s.BuildCommand(path, args, useCompatLayer, useShell), nil
}

// EscapeArgs is a convenience wrapper around ForPlatform(p).EscapeArgs.
func EscapeArgs(p Platform, args []string) ([]string, error) {
	s, err := ForPlatform(p)
	if err != nil {
		return nil, err
	}
	return s.EscapeArgs(args), nil
}

// Argv returns the program and argument vector for running path without a
// shell. Under the compatibility layer the program is the layer itself.
func Argv(path string, args []string, useCompatLayer bool) (string, []string) {
	if useCompatLayer {
		argv := append([]string{"start", "/wait", "/unix", path}, args...)
		return CompatLauncher, argv
	}
	return path, append([]string(nil), args...)
}

type windowsStrategy struct{}

func (windowsStrategy) Platform() Platform { return Windows }

func (windowsStrategy) BuildCommand(path string, args []string, _ bool, useShell bool) string {
	if !useShell {
		return path
	}
	return quoted(path, args)
}

func (windowsStrategy) EscapeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = EscapeWindows(a)
	}
	return out
}

func (windowsStrategy) ResolveExecPath(path string, _ []ExecMapping, _ bool) string {
	return path
}

type posixStrategy struct {
	platform Platform
}

func (s posixStrategy) Platform() Platform { return s.platform }

func (posixStrategy) BuildCommand(path string, args []string, useCompatLayer, useShell bool) string {
	if useCompatLayer {
		return joinArgs(CompatLauncher+` start /wait /unix "`+path+`"`, args)
	}
	if !useShell {
		return path
	}
	return quoted(path, args)
}

func (posixStrategy) EscapeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = EscapePOSIX(a)
	}
	return out
}

func (s posixStrategy) ResolveExecPath(path string, mappings []ExecMapping, native bool) string {
	return resolvePOSIX(s.platform, path, mappings, native)
}

func quoted(path string, args []string) string {
	return joinArgs(`"`+path+`"`, args)
}

func joinArgs(head string, args []string) string {
	if len(args) == 0 {
		return head
	}
	return head + " " + strings.Join(args, " ")
}
