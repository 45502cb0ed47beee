// Package logging builds the process logger and forwards supervised process
// output into it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/harshul/relic/internal/supervisor"
)

// ParseLevel converts a configured level name.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a logger writing to w in the given format ("text" or "json").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// OutputSink mirrors process output to logger at debug level.
func OutputSink(logger *slog.Logger) supervisor.Listener {
	return supervisor.Listener{
		OnOutput: func(o supervisor.Output) {
			logger.Debug(o.Content, "source", o.Source)
		},
		OnExit: func(status supervisor.ExitStatus) {
			logger.Debug("process exited", "code", status.Code, "signal", status.Signal)
		},
	}
}
