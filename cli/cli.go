// Package cli contains the command line interface for blocktags.
//
// The CLI exposes the expression sub-language directly: "eval" evaluates
// a single expression against an optional YAML context file, and "repl"
// starts an interactive evaluator with completion and history.
//
// Logging flags (--log-level, --log-format, --log-time, --log-caller)
// configure the process-wide slog default. Profiling flags are only
// available when built with the pprof build tag:
//
//	go build -tags pprof ./cmd/blocktags
package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/legutierr/blocktags/cli/cmd"
	"github.com/legutierr/blocktags/cli/cmd/repl"
	"github.com/legutierr/blocktags/pkg"
)

// CLI is the top-level command-line interface for blocktags.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Repl repl.Cmd `cmd:"" help:"Interactive expression evaluator"`

	Eval cmd.Eval `cmd:"" default:"withargs" help:"Evaluate an expression"`
}

// Run executes the blocktags CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon
// completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	if err := mkdirAllRequired(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Vars{repl.HistoryDirIdentifier: cacheDir()}.
			CloneWith(cli.Pprof.vars()),
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Install the logger before any command runs so library warnings are
	// routed through the configured handler.
	cli.Log.start(ctx)

	// [pprofConfig.start] is a no-op unless built with tag pprof and
	// enabled.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
