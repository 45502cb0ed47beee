package launcher

import (
	"context"
	"errors"
	"slices"
)

// ErrInvalidResolution is returned for a provider response that names
// nothing to launch.
var ErrInvalidResolution = errors.New("invalid response given by provider")

// Resolution is a provider's answer: ResolvedPath, ResolvedArgv or
// BrowserResolution.
type Resolution interface {
	isResolution()
}

// ResolvedPath replaces the executable and continues the normal launch.
type ResolvedPath string

// ResolvedArgv replaces the executable with its first element and prepends
// the rest to the arguments.
type ResolvedArgv []string

// BrowserResolution launches an embedded browser on URL instead of the
// title's executable.
type BrowserResolution struct {
	URL   string
	Proxy string
}

func (ResolvedPath) isResolution()      {}
func (ResolvedArgv) isResolution()      {}
func (BrowserResolution) isResolution() {}

// Provider can substitute another launch strategy for the paths it
// provides.
type Provider struct {
	Name     string
	Provides []string
	Resolve  func(ctx context.Context, title Title, launchCommand string) (Resolution, error)
}

func (p Provider) matches(paths ...string) bool {
	for _, path := range paths {
		if slices.Contains(p.Provides, path) {
			return true
		}
	}
	return false
}

// ProviderRegistry lists providers in registration order.
type ProviderRegistry interface {
	Providers() []Provider
}

// ProviderList is a ProviderRegistry backed by a slice.
type ProviderList []Provider

// Providers returns the list.
func (l ProviderList) Providers() []Provider {
	return l
}

func validate(res Resolution) error {
	switch r := res.(type) {
	case ResolvedPath:
		if r == "" {
			return ErrInvalidResolution
		}
	case ResolvedArgv:
		if len(r) == 0 || r[0] == "" {
			return ErrInvalidResolution
		}
	case BrowserResolution:
		if r.URL == "" {
			return ErrInvalidResolution
		}
	default:
		return ErrInvalidResolution
	}
	return nil
}
