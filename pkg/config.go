package pkg

import (
	"sync"
	"sync/atomic"

	"github.com/mstoykov/envconfig"
)

// Config holds deployment-time settings. It is read from the environment
// exactly once; it is a deployment switch, not a per-call option.
type Config struct {
	// Debug selects strict error policy: coercion failures raise syntax
	// errors instead of warning and substituting a sentinel value.
	Debug bool `envconfig:"DEBUG"`
}

var (
	configOnce sync.Once
	config     Config

	// strictOverride, when set, takes precedence over the environment.
	// It exists so tests can toggle policy without mutating the process
	// environment.
	strictOverride atomic.Pointer[bool]
)

// Deployment returns the process-wide deployment configuration.
func Deployment() Config {
	configOnce.Do(func() {
		// A malformed environment falls back to the zero (lenient) config.
		_ = envconfig.Process(EnvPrefix, &config)
	})

	return config
}

// Strict reports whether coercion failures should raise errors (debug
// deployments) rather than warn and substitute a sentinel (production).
func Strict() bool {
	if p := strictOverride.Load(); p != nil {
		return *p
	}

	return Deployment().Debug
}

// SetStrict overrides the environment-derived error policy.
func SetStrict(strict bool) {
	strictOverride.Store(&strict)
}
