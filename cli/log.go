package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/legutierr/blocktags/log"
)

type logConfig struct {
	Level  string `default:"info" enum:"debug,info,warn,error" help:"Set log level."`
	Format string `default:"text" enum:"text,json,pretty"      help:"Set log format."`
	Time   string `default:"RFC3339"                           help:"Set timestamp format (a time package layout name, or 'none')."`
	Caller bool   `default:"false"                             help:"Include caller information." negatable:""`
}

func (*logConfig) group() kong.Group {
	var group kong.Group

	group.Key = "log"
	group.Title = "Logging options"

	return group
}

// start builds the root logger from the parsed flags and installs it as
// the slog default.
func (f *logConfig) start(ctx context.Context) {
	logger := log.Make(os.Stderr,
		log.WithLevel(log.ParseLevel(f.Level)),
		log.WithFormat(log.ParseFormat(f.Format)),
		log.WithTimeLayout(log.ParseTimeLayout(f.Time)),
		log.WithCaller(f.Caller),
	)
	logger.Install()

	slog.DebugContext(ctx, "logger initialized",
		slog.String("level", f.Level),
		slog.String("format", f.Format),
		slog.String("time", f.Time),
		slog.Bool("caller", f.Caller),
	)
}
