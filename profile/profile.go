// Package profile provides optional runtime profiling built on
// [github.com/pkg/profile].
//
// Profiling is enabled at build time with the "pprof" build tag:
//
//	go build -tags pprof ./cmd/blocktags
//
// Without the tag, every operation is a no-op with zero overhead, so
// callers never need to guard their profiling hooks.
package profile

// Tag is the build tag required to enable profiling.
const Tag = `pprof`

// Config functions return all supported profiler configuration values.
type Config func() (mode, path string, quiet bool)

// Start initializes the profiler and returns an interface for stopping
// it. If the build tag or mode is unset, Start returns a no-op
// implementation. Both Start and Stop are always safely callable.
func (c Config) Start() interface{ Stop() } {
	mode, path, quiet := c()

	if mode == "" {
		return ignore{}
	}

	return start(mode, path, quiet)
}

// WithMode returns a functional option for setting a profiler's mode.
func WithMode(mode string) func(Config) Config {
	return func(c Config) Config {
		_, path, quiet := c()

		return func() (string, string, bool) {
			return mode, path, quiet
		}
	}
}

// WithPath returns a functional option for setting a profiler's output
// directory.
func WithPath(path string) func(Config) Config {
	return func(c Config) Config {
		mode, _, quiet := c()

		return func() (string, string, bool) {
			return mode, path, quiet
		}
	}
}

// WithQuiet returns a functional option for suppressing profiler output.
func WithQuiet(quiet bool) func(Config) Config {
	return func(c Config) Config {
		mode, path, _ := c()

		return func() (string, string, bool) {
			return mode, path, quiet
		}
	}
}

type ignore struct{}

func (ignore) Stop() {}
