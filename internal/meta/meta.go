package meta

const (
	// CLIName is the binary name used in help text, config paths and env prefixes.
	CLIName = "cardano-launcher"

	// EnvPrefix is the prefix for configuration environment variables.
	EnvPrefix = "CARDANO_LAUNCHER"
)
