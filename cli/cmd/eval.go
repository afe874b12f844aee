package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/lexer"
	"github.com/legutierr/blocktags/pkg"
)

// Eval evaluates a single expression against an optional YAML context.
type Eval struct {
	Expr    []string `arg:"" help:"Expression to evaluate"       name:"expr"`
	Context string   `       help:"YAML context file or '-' for stdin" short:"c"`
}

// Run executes the eval command.
func (e *Eval) Run(ctx context.Context) (err error) {
	_, cancel := context.WithCancelCause(ctx)

	defer func(err *error) {
		cancel(*err)
	}(&err)

	ec, err := LoadContext(e.Context)
	if err != nil {
		return err
	}

	result, err := Evaluate(ec, strings.Join(e.Expr, " "))
	if err != nil {
		return err
	}

	fmt.Println(expr.Stringify(result))

	return nil
}

// Evaluate tokenizes, parses, and resolves a single expression.
func Evaluate(ec *expr.Context, source string) (any, error) {
	stream, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}

	node, err := expr.Parse(stream)
	if err != nil {
		return nil, err
	}

	if !stream.EOS() {
		return nil, pkg.ErrExprSyntax.
			Wrapf("unexpected trailing input").
			With(slog.String("token", stream.Current().ValueString()))
	}

	return node.Resolve(ec)
}
