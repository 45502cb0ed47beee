package launcher

import (
	"context"
	"log/slog"

	"github.com/harshul/relic/internal/supervisor"
)

// DialogOptions describe a modal message.
type DialogOptions struct {
	Title        string
	Message      string
	LargeMessage bool
	Buttons      []string
}

// Dialog shows messages to the user. Await blocks until the dialog is
// answered and returns the chosen button index.
type Dialog interface {
	Open(ctx context.Context, opts DialogOptions) (string, error)
	Await(ctx context.Context, id string) (int, error)
}

// Opener opens a path with the host's default handler.
type Opener interface {
	OpenExternal(ctx context.Context, path string) error
}

// ProcessHost owns the supervised processes started by launches.
type ProcessHost interface {
	Add(rec supervisor.Record, opts ...supervisor.Option) (*supervisor.Process, error)
	Remove(p *supervisor.Process)
}

// PreLaunchCheck runs before a title or additional run is launched; an
// error aborts the launch.
type PreLaunchCheck func(ctx context.Context, title Title) error

// logDialog writes messages to the log and answers them immediately.
type logDialog struct {
	logger *slog.Logger
}

func (d logDialog) Open(ctx context.Context, opts DialogOptions) (string, error) {
	d.logger.Info(opts.Message, "source", logSource, "dialog", opts.Title)
	return "", nil
}

func (d logDialog) Await(ctx context.Context, id string) (int, error) {
	return 0, nil
}

var _ ProcessHost = (*supervisor.Registry)(nil)
