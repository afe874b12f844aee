// Package cmd implements the blocktags CLI commands.
package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/readahead"

	"github.com/legutierr/blocktags/expr"
	"github.com/legutierr/blocktags/pkg"
)

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// LoadContext builds an evaluation context from a YAML file whose
// top-level document is a mapping of variable names to values. An empty
// path yields an empty context, and "-" reads the document from stdin.
//
// Files are read through an asynchronous read-ahead buffer so decoding
// overlaps with disk I/O.
func LoadContext(path string) (*expr.Context, error) {
	if path == "" {
		return expr.NewContext(nil), nil
	}

	var source io.Reader
	if path == stdinSource {
		source = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, pkg.ErrImproperlyConfigured.Wrap(err).
				With(slog.String("context", path))
		}
		defer file.Close()

		source = file
	}

	buffered := readahead.NewReader(source)
	defer buffered.Close()

	vars := map[string]any{}

	if err := yaml.NewDecoder(buffered).Decode(&vars); err != nil {
		// An empty document is an empty context.
		if !errors.Is(err, io.EOF) {
			return nil, pkg.ErrImproperlyConfigured.Wrap(err).
				With(slog.String("context", path))
		}
	}

	return expr.NewContext(vars), nil
}
