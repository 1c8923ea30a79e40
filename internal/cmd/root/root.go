package root

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/segmentio/cli"
	"github.com/spf13/cobra"

	"github.com/walletstack/cardano-launcher/internal/build"
	"github.com/walletstack/cardano-launcher/internal/cmd"
	"github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/verbs/networks"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/verbs/ps"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/verbs/start"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/version"
	"github.com/walletstack/cardano-launcher/internal/config"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
	"github.com/walletstack/cardano-launcher/internal/log"
	"github.com/walletstack/cardano-launcher/internal/meta"
	"github.com/walletstack/cardano-launcher/internal/util/normalizers"
)

var (
	rootLong = normalizers.LongDesc(`
  cardano-launcher runs a Cardano node and a wallet backend as one unit.

  It starts the node, waits until it accepts connections, starts the wallet
  against it and waits for the wallet API. If either process exits the other
  is stopped too, and the combined exit status is reported.`)

	rootShort = fmt.Sprintf("%s supervises a Cardano node and wallet", meta.CLIName)
)

// rootCmd holds the state of one CLI invocation.
type rootCmd struct {
	configFilePath string
	profile        string
	outputFormat   *cmd.FlagEnum
	logLevel       *cmd.FlagEnum
	logFile        string

	streams   *iostreams.IOStreams
	buildInfo *build.Info
	cfg       *config.ProfiledConfig
	logger    *slog.Logger
	closeLog  func() error
}

func newRootCmd(streams *iostreams.IOStreams, bi *build.Info) (*cobra.Command, *rootCmd, error) {
	defaultConfigFile, err := config.GetDefaultConfigFilePath()
	if err != nil {
		return nil, nil, err
	}

	r := &rootCmd{
		configFilePath: defaultConfigFile,
		profile:        common.DefaultProfile,
		outputFormat:   cmd.NewEnum([]string{"json", "yaml", "text"}, common.DefaultOutputFormat),
		logLevel:       cmd.NewEnum([]string{"trace", "debug", "info", "warn", "error"}, common.DefaultLogLevel),
		streams:        streams,
		buildInfo:      bi,
	}

	// Because the profile selects the configuration section, it can't come
	// from the configuration itself. The environment sits below the flag.
	if p, ok := os.LookupEnv(meta.EnvPrefix + "_PROFILE"); ok && p != "" {
		r.profile = p
	}

	c := &cobra.Command{
		Use:               meta.CLIName,
		Short:             rootShort,
		Long:              rootLong,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: r.preRun,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if r.closeLog != nil {
				return r.closeLog()
			}
			return nil
		},
	}
	// parses all flags not just the target command
	c.TraverseChildren = true
	c.SetIn(streams.In)
	c.SetOut(streams.Out)
	c.SetErr(streams.ErrOut)

	pf := c.PersistentFlags()
	pf.StringVar(&r.configFilePath, common.ConfigFilePathFlagName, r.configFilePath,
		"Path to the configuration file to load.")
	pf.StringVarP(&r.profile, common.ProfileFlagName, common.ProfileFlagShort, r.profile,
		fmt.Sprintf(`Configuration profile to use. A profile is one supervised stack.
- Environment: [ %s_PROFILE ]`, meta.EnvPrefix))
	pf.VarP(r.outputFormat, common.OutputFlagName, common.OutputFlagShort,
		fmt.Sprintf(`Configures the output format.
- Config path: [ %s ]
- Allowed    : [ %s ]`, common.OutputConfigPath, strings.Join(r.outputFormat.Allowed, "|")))
	pf.Var(r.logLevel, common.LogLevelFlagName,
		fmt.Sprintf(`Configures the logging level.
- Config path: [ %s ]
- Allowed    : [ %s ]`, common.LogLevelConfigPath, strings.Join(r.logLevel.Allowed, "|")))
	pf.StringVar(&r.logFile, common.LogFileFlagName, "",
		fmt.Sprintf(`Write logs to this file; errors are still shown on stderr.
- Config path: [ %s ]`, common.LogFileConfigPath))

	if err := addCommands(c); err != nil {
		return nil, nil, err
	}
	return c, r, nil
}

// addCommands adds the root subcommands to the command.
func addCommands(c *cobra.Command) error {
	c.AddCommand(version.NewVersionCmd())
	for _, ctor := range []func() (*cobra.Command, error){
		start.NewStartCmd,
		ps.NewPSCmd,
		networks.NewNetworksCmd,
	} {
		sub, err := ctor()
		if err != nil {
			return err
		}
		c.AddCommand(sub)
	}
	return nil
}

// preRun loads the profile configuration, builds the logger and places both
// in the command context.
func (r *rootCmd) preRun(c *cobra.Command, _ []string) error {
	defaultConfigFile, err := config.GetDefaultConfigFilePath()
	if err != nil {
		return err
	}
	cfg, err := config.GetConfig(r.configFilePath, r.profile, defaultConfigFile)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}
	r.cfg = cfg

	flags := c.Root().PersistentFlags()
	for flag, path := range map[string]string{
		common.OutputFlagName:   common.OutputConfigPath,
		common.LogLevelFlagName: common.LogLevelConfigPath,
		common.LogFileFlagName:  common.LogFileConfigPath,
	} {
		if err := cfg.BindFlag(path, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	level := cfg.GetString(common.LogLevelConfigPath)
	if _, err := common.LogLevelStringToIota(level); err != nil {
		return &cmd.ConfigurationError{Err: err}
	}
	if _, err := common.OutputFormatStringToIota(cfg.GetString(common.OutputConfigPath)); err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	logger, closeLog, err := log.NewLogger(log.Options{
		Level:   level,
		File:    cfg.GetString(common.LogFileConfigPath),
		Console: r.streams.ErrOut,
	})
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}
	r.logger = logger.With("profile", r.profile)
	r.closeLog = closeLog

	ctx := context.WithValue(c.Context(), config.ConfigKey, config.Hook(cfg))
	ctx = context.WithValue(ctx, iostreams.StreamsKey, r.streams)
	ctx = context.WithValue(ctx, build.InfoKey, r.buildInfo)
	ctx = context.WithValue(ctx, log.LoggerKey, r.logger)
	c.SetContext(ctx)
	return nil
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, streams *iostreams.IOStreams, bi *build.Info) int {
	cobra.EnableTraverseRunHooks = true

	c, r, err := newRootCmd(streams, bi)
	if err != nil {
		fmt.Fprintln(streams.ErrOut, "Error:", err)
		return 1
	}

	err = c.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	format := r.outputFormat.String()
	if r.cfg != nil {
		format = r.cfg.GetString(common.OutputConfigPath)
	}

	var executionError *cmd.ExecutionError
	if !errors.As(err, &executionError) {
		executionError = &cmd.ExecutionError{Msg: err.Error(), Err: err}
	} else if r.logger != nil {
		attrs := append([]any{"error", executionError.Err}, executionError.Attrs...)
		r.logger.Debug(executionError.Msg, attrs...)
	}
	printError(streams, format, executionError)
	return executionError.Code()
}

func printError(streams *iostreams.IOStreams, format string, err *cmd.ExecutionError) {
	if format == common.TEXT.String() {
		fmt.Fprintln(streams.ErrOut, "Error:", err.Msg)
		return
	}
	printer, perr := cli.Format(format, streams.ErrOut)
	if perr != nil {
		fmt.Fprintln(streams.ErrOut, "Error:", err.Msg)
		return
	}
	defer printer.Flush()
	printer.Print(map[string]any{
		"error":     err.Msg,
		"exit_code": err.Code(),
	})
}
