package launcher

import (
	"context"
	"errors"
	"fmt"
)

// ErrMiddlewareNotFound is returned for a configured middleware id that no
// registry entry answers to.
var ErrMiddlewareNotFound = errors.New("middleware not found")

// Middleware transforms a LaunchInfo before it is executed.
type Middleware interface {
	Execute(ctx context.Context, info LaunchInfo, config any) (LaunchInfo, error)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, info LaunchInfo, config any) (LaunchInfo, error)

// Execute calls f.
func (f MiddlewareFunc) Execute(ctx context.Context, info LaunchInfo, config any) (LaunchInfo, error) {
	return f(ctx, info, config)
}

// MiddlewareRegistry looks middleware up by id.
type MiddlewareRegistry interface {
	Middleware(id string) (Middleware, bool)
}

// MiddlewareMap is a MiddlewareRegistry backed by a map.
type MiddlewareMap map[string]Middleware

// Middleware returns the entry for id.
func (m MiddlewareMap) Middleware(id string) (Middleware, bool) {
	mw, ok := m[id]
	return mw, ok
}

// MiddlewareConfig selects one middleware for a launch.
type MiddlewareConfig struct {
	ID      string `yaml:"id" mapstructure:"id"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Config  any    `yaml:"config,omitempty" mapstructure:"config"`
}

// MiddlewareError reports which middleware aborted a launch.
type MiddlewareError struct {
	ID  string
	Err error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware %q: %v", e.ID, e.Err)
}

func (e *MiddlewareError) Unwrap() error {
	return e.Err
}

// applyMiddleware runs the enabled entries of chain in order, each seeing the
// result of the previous one.
func applyMiddleware(ctx context.Context, reg MiddlewareRegistry, chain []MiddlewareConfig, info LaunchInfo) (LaunchInfo, error) {
	for _, mc := range chain {
		if !mc.Enabled {
			continue
		}
		var mw Middleware
		ok := false
		if reg != nil {
			mw, ok = reg.Middleware(mc.ID)
		}
		if !ok {
			return LaunchInfo{}, &MiddlewareError{ID: mc.ID, Err: ErrMiddlewareNotFound}
		}
		next, err := mw.Execute(ctx, info.Clone(), mc.Config)
		if err != nil {
			return LaunchInfo{}, &MiddlewareError{ID: mc.ID, Err: err}
		}
		info = next
	}
	return info, nil
}
