package common

import (
	"fmt"
	"time"
)

// OutputFormat enumerates the values of the --output flag.
type OutputFormat int

type LogLevel int

const (
	JSON OutputFormat = iota
	YAML
	TEXT
)

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

const (
	// related to the --output flag
	DefaultOutputFormat = "text"
	OutputFlagName      = "output"
	OutputFlagShort     = "o"
	OutputConfigPath    = OutputFlagName

	// related to the --profile flag
	ProfileFlagName  = "profile"
	ProfileFlagShort = "p"
	DefaultProfile   = "default"

	// related to the --config-file flag
	ConfigFilePathFlagName = "config-file"

	// related to the --log-level flag
	LogLevelFlagName   = "log-level"
	DefaultLogLevel    = "info"
	LogLevelConfigPath = LogLevelFlagName

	// related to the --log-file flag
	LogFileFlagName   = "log-file"
	LogFileConfigPath = LogFileFlagName
)

// Flags and configuration paths of the start command.
const (
	StateDirFlagName   = "state-dir"
	StateDirConfigPath = StateDirFlagName

	NetworkFlagName   = "network"
	NetworkConfigPath = NetworkFlagName

	BackendFlagName   = "backend"
	BackendConfigPath = "node.backend"
	DefaultBackend    = "jormungandr"

	NodeExeFlagName   = "node-exe"
	NodeExeConfigPath = "node.exe"

	WalletExeFlagName   = "wallet-exe"
	WalletExeConfigPath = "wallet.exe"

	NodeConfigDirFlagName   = "node-config-dir"
	NodeConfigDirConfigPath = "node.config-dir"

	ExtraArgsFlagName   = "node-arg"
	ExtraArgsConfigPath = "node.extra-args"

	RestPortFlagName   = "node-rest-port"
	RestPortConfigPath = "node.rest-port"

	NodePortFlagName   = "node-port"
	NodePortConfigPath = "node.port"

	NetworksFileFlagName   = "networks-file"
	NetworksFileConfigPath = NetworksFileFlagName

	APIPortFlagName   = "api-port"
	APIPortConfigPath = APIPortFlagName

	StopTimeoutFlagName   = "stop-timeout"
	StopTimeoutConfigPath = StopTimeoutFlagName
	DefaultStopTimeout    = 15 * time.Second

	ProbeIntervalFlagName   = "probe-interval"
	ProbeIntervalConfigPath = ProbeIntervalFlagName
	DefaultProbeInterval    = 250 * time.Millisecond

	ChildOutputFlagName   = "child-output"
	ChildOutputConfigPath = ChildOutputFlagName

	MetricsAddressFlagName   = "metrics-address"
	MetricsAddressConfigPath = "metrics.address"
)

func (of OutputFormat) String() string {
	return [...]string{"json", "yaml", "text"}[of]
}

func OutputFormatStringToIota(format string) (OutputFormat, error) {
	switch format {
	case "json":
		return JSON, nil
	case "yaml":
		return YAML, nil
	case "text":
		return TEXT, nil
	default:
		return TEXT, fmt.Errorf("invalid output format %q, must be one of %v", format, []string{"json", "yaml", "text"})
	}
}

func (ll LogLevel) String() string {
	return [...]string{"trace", "debug", "info", "warn", "error"}[ll]
}

func LogLevelStringToIota(level string) (LogLevel, error) {
	switch level {
	case "trace":
		return TRACE, nil
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return ERROR, fmt.Errorf("invalid log level %q, must be one of %v", level,
			[]string{"trace", "debug", "info", "warn", "error"})
	}
}
