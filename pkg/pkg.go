//nolint:gochecknoglobals
package pkg

const (
	// Name is the canonical module identifier used across the project.
	// It appears in help text, log output, and environment variable prefixes.
	Name = "blocktags"
	// Description is a short, human-readable summary of the project used in
	// help output and documentation.
	Description = "Declarative argument grammars for block-structured template tags"
)

// EnvPrefix is the prefix for all environment variables read by the module.
const EnvPrefix = "blocktags"
