package start

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/walletstack/cardano-launcher/internal/backend"
	"github.com/walletstack/cardano-launcher/internal/cmd"
	"github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/cmd/output/jq"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/verbs"
	"github.com/walletstack/cardano-launcher/internal/config"
	"github.com/walletstack/cardano-launcher/internal/httpclient"
	"github.com/walletstack/cardano-launcher/internal/launcher"
	"github.com/walletstack/cardano-launcher/internal/log"
	"github.com/walletstack/cardano-launcher/internal/meta"
	"github.com/walletstack/cardano-launcher/internal/metrics"
	"github.com/walletstack/cardano-launcher/internal/processes"
	"github.com/walletstack/cardano-launcher/internal/util"
	"github.com/walletstack/cardano-launcher/internal/util/normalizers"
)

var (
	startUse   = verbs.Start.String()
	startShort = "Run a node and wallet until stopped"
	startLong  = normalizers.LongDesc(`Start a Cardano node, wait for it to accept connections, then start the
wallet against it and wait until the wallet API answers. The stack runs in the
foreground until interrupted or until either process exits, and both processes
are always stopped together.

The wallet API descriptor is printed once the API is ready.`)
	startExample = normalizers.Examples(fmt.Sprintf(`
  # Run the incentivized testnet stack with jormungandr
  %[1]s start --network itn_rewards_v1

  # Run a byron testnet stack with network files from a directory
  %[1]s start --backend byron --network testnet --node-config-dir ./configuration

  # Print only the wallet API URL once ready
  %[1]s start -o json --jq .base_url -r

  # Pass extra node arguments, templated with the state directory
  %[1]s start --node-arg '--log-file={{ .StateDir }}/node.log'
`, meta.CLIName))
)

var (
	// replaced in tests
	newBackend  = backend.New
	newRegistry = processes.DefaultRegistry
)

type flagBinding struct {
	flag string
	path string
}

var bindings = []flagBinding{
	{common.StateDirFlagName, common.StateDirConfigPath},
	{common.NetworkFlagName, common.NetworkConfigPath},
	{common.BackendFlagName, common.BackendConfigPath},
	{common.NodeExeFlagName, common.NodeExeConfigPath},
	{common.WalletExeFlagName, common.WalletExeConfigPath},
	{common.NodeConfigDirFlagName, common.NodeConfigDirConfigPath},
	{common.ExtraArgsFlagName, common.ExtraArgsConfigPath},
	{common.RestPortFlagName, common.RestPortConfigPath},
	{common.NodePortFlagName, common.NodePortConfigPath},
	{common.NetworksFileFlagName, common.NetworksFileConfigPath},
	{common.APIPortFlagName, common.APIPortConfigPath},
	{common.StopTimeoutFlagName, common.StopTimeoutConfigPath},
	{common.ProbeIntervalFlagName, common.ProbeIntervalConfigPath},
	{common.ChildOutputFlagName, common.ChildOutputConfigPath},
	{common.MetricsAddressFlagName, common.MetricsAddressConfigPath},
}

// options is the resolved configuration of one start invocation.
type options struct {
	stateDir       string
	node           backend.NodeConfig
	apiPort        int
	stopTimeout    time.Duration
	probeInterval  time.Duration
	childOutput    bool
	metricsAddress string
}

// NewStartCmd builds the start verb.
func NewStartCmd() (*cobra.Command, error) {
	rv := &cobra.Command{
		Use:     startUse,
		Short:   startShort,
		Long:    startLong,
		Example: startExample,
		Args:    verbs.NoPositionalArgs,
		PreRunE: func(c *cobra.Command, args []string) error {
			return bindFlags(cmd.BuildHelper(c, args))
		},
		RunE: func(c *cobra.Command, args []string) error {
			helper := cmd.BuildHelper(c, args)
			opts, err := resolveOptions(helper)
			if err != nil {
				return err
			}
			return run(helper, opts)
		},
	}

	flags := rv.Flags()
	flags.String(common.StateDirFlagName, "",
		fmt.Sprintf(`Directory for node and wallet databases and generated files.
- Config path: [ %s ]`, common.StateDirConfigPath))
	flags.String(common.NetworkFlagName, "",
		fmt.Sprintf(`Network to connect to, see the networks command.
- Config path: [ %s ]`, common.NetworkConfigPath))

	kinds := make([]string, 0, len(backend.Kinds()))
	for _, k := range backend.Kinds() {
		kinds = append(kinds, string(k))
	}
	flags.Var(cmd.NewEnum(kinds, common.DefaultBackend), common.BackendFlagName,
		fmt.Sprintf(`Node backend.
- Config path: [ %s ]
- Allowed    : [ %s ]`, common.BackendConfigPath, strings.Join(kinds, "|")))

	flags.String(common.NodeExeFlagName, "",
		fmt.Sprintf(`Node executable. Defaults to the backend's usual name on PATH.
- Config path: [ %s ]`, common.NodeExeConfigPath))
	flags.String(common.WalletExeFlagName, "",
		fmt.Sprintf(`Wallet executable. Defaults to the backend's usual name on PATH.
- Config path: [ %s ]`, common.WalletExeConfigPath))
	flags.String(common.NodeConfigDirFlagName, "",
		fmt.Sprintf(`Directory holding network files such as genesis and topology.
- Config path: [ %s ]`, common.NodeConfigDirConfigPath))
	flags.StringArray(common.ExtraArgsFlagName, nil,
		fmt.Sprintf(`Extra node argument, may be repeated. Go templates with sprig functions and
.StateDir, .Network, .NodePort and .RestPort are expanded.
- Config path: [ %s ]`, common.ExtraArgsConfigPath))
	flags.Int(common.RestPortFlagName, 0,
		fmt.Sprintf(`Node REST port (jormungandr). Zero picks a free port.
- Config path: [ %s ]`, common.RestPortConfigPath))
	flags.Int(common.NodePortFlagName, 0,
		fmt.Sprintf(`Node peer-to-peer port. Zero picks a free port.
- Config path: [ %s ]`, common.NodePortConfigPath))
	flags.String(common.NetworksFileFlagName, "",
		fmt.Sprintf(`YAML network table replacing the built-in one.
- Config path: [ %s ]`, common.NetworksFileConfigPath))
	flags.Int(common.APIPortFlagName, 0,
		fmt.Sprintf(`Wallet API port. Zero picks a free port.
- Config path: [ %s ]`, common.APIPortConfigPath))
	flags.Duration(common.StopTimeoutFlagName, common.DefaultStopTimeout,
		fmt.Sprintf(`Grace period before a process that ignores the stop request is killed.
- Config path: [ %s ]`, common.StopTimeoutConfigPath))
	flags.Duration(common.ProbeIntervalFlagName, common.DefaultProbeInterval,
		fmt.Sprintf(`Interval between node and wallet readiness checks.
- Config path: [ %s ]`, common.ProbeIntervalConfigPath))
	flags.Bool(common.ChildOutputFlagName, false,
		fmt.Sprintf(`Forward node and wallet output to stderr.
- Config path: [ %s ]`, common.ChildOutputConfigPath))
	flags.String(common.MetricsAddressFlagName, "",
		fmt.Sprintf(`Serve prometheus metrics on this address, e.g. 127.0.0.1:9100.
- Config path: [ %s ]`, common.MetricsAddressConfigPath))
	jq.AddFlags(flags)

	return rv, nil
}

func bindFlags(helper cmd.Helper) error {
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	flags := helper.GetCmd().Flags()
	for _, b := range bindings {
		if err := cfg.BindFlag(b.path, flags.Lookup(b.flag)); err != nil {
			return err
		}
	}
	return jq.BindFlags(cfg, flags)
}

func resolveOptions(helper cmd.Helper) (options, error) {
	cfg, err := helper.GetConfig()
	if err != nil {
		return options{}, err
	}

	opts := options{
		stateDir: util.ExpandPath(cfg.GetString(common.StateDirConfigPath)),
		node: backend.NodeConfig{
			Kind:         backend.Kind(cfg.GetString(common.BackendConfigPath)),
			Network:      cfg.GetString(common.NetworkConfigPath),
			ExtraArgs:    cfg.GetStringSlice(common.ExtraArgsConfigPath),
			NodeExe:      util.ExpandPath(cfg.GetString(common.NodeExeConfigPath)),
			WalletExe:    util.ExpandPath(cfg.GetString(common.WalletExeConfigPath)),
			ConfigDir:    util.ExpandPath(cfg.GetString(common.NodeConfigDirConfigPath)),
			RestPort:     cfg.GetInt(common.RestPortConfigPath),
			NodePort:     cfg.GetInt(common.NodePortConfigPath),
			NetworksFile: util.ExpandPath(cfg.GetString(common.NetworksFileConfigPath)),
		},
		apiPort:        cfg.GetInt(common.APIPortConfigPath),
		stopTimeout:    cfg.GetDuration(common.StopTimeoutConfigPath),
		probeInterval:  cfg.GetDuration(common.ProbeIntervalConfigPath),
		childOutput:    cfg.GetBool(common.ChildOutputConfigPath),
		metricsAddress: cfg.GetString(common.MetricsAddressConfigPath),
	}
	opts.node.PollInterval = opts.probeInterval

	if opts.node.Kind == "" {
		opts.node.Kind = common.DefaultBackend
	}
	if opts.stateDir == "" {
		opts.stateDir = defaultStateDir(cfg)
	}
	if opts.node.Network == "" {
		return options{}, &cmd.ConfigurationError{
			Err: fmt.Errorf("no network configured, set --%s", common.NetworkFlagName),
		}
	}
	for name, port := range map[string]int{
		common.APIPortFlagName:  opts.apiPort,
		common.RestPortFlagName: opts.node.RestPort,
		common.NodePortFlagName: opts.node.NodePort,
	} {
		if port < 0 || port > 65535 {
			return options{}, &cmd.ConfigurationError{
				Err: fmt.Errorf("invalid --%s %d", name, port),
			}
		}
	}
	if opts.stopTimeout < 0 {
		return options{}, &cmd.ConfigurationError{
			Err: fmt.Errorf("--%s must not be negative", common.StopTimeoutFlagName),
		}
	}
	return opts, nil
}

func defaultStateDir(cfg config.Hook) string {
	base := filepath.Dir(cfg.GetPath())
	if cfg.GetPath() == "" {
		if dir, err := config.GetDefaultConfigPath(); err == nil {
			base = dir
		}
	}
	return filepath.Join(base, "state", cfg.GetProfile())
}

func run(helper cmd.Helper, opts options) error {
	logger, err := helper.GetLogger()
	if err != nil {
		return err
	}
	ctx := helper.GetContext()

	be, err := newBackend(opts.node)
	if err != nil {
		if errors.Is(err, backend.ErrUnknownNetwork) || errors.Is(err, backend.ErrUnknownBackend) {
			return &cmd.ConfigurationError{Err: err}
		}
		return cmd.PrepareExecutionErrorWithHelper(helper, "failed to configure the node backend", err)
	}

	var childOutput io.Writer
	if opts.childOutput {
		childOutput = helper.GetStreams().ErrOut
	}

	l, err := launcher.New(launcher.Config{
		StateDir:      opts.stateDir,
		Backend:       be,
		APIPort:       opts.apiPort,
		ProbeInterval: opts.probeInterval,
		StopTimeout:   opts.stopTimeout,
		ChildOutput:   childOutput,
		HTTPClient:    httpclient.NewLoggingHTTPClient(logger.With("component", "probe")),
	}, logger)
	if err != nil {
		if errors.Is(err, launcher.ErrMissingConfig) {
			return &cmd.ConfigurationError{Err: err}
		}
		return cmd.PrepareExecutionErrorWithHelper(helper, "failed to prepare the launcher", err)
	}

	if opts.metricsAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddress); err != nil {
				logger.Error("metrics endpoint failed", "address", opts.metricsAddress, "error", err)
			}
		}()
	}

	registry, err := newRegistry()
	if err != nil {
		logger.Error("process registry unavailable", "error", err)
	}
	record := trackRecord(l, registry, opts, logger)
	defer record.remove()

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("stop requested")
			l.Stop(opts.stopTimeout)
		case <-l.Done():
		}
	}()

	api, startErr := l.Start()
	if startErr == nil {
		if err := jq.Render(helper, api, func(out io.Writer) error {
			_, err := fmt.Fprintf(out, "Wallet API ready at %s\n", api.BaseURL)
			return err
		}); err != nil {
			l.Stop(opts.stopTimeout)
			return err
		}
	}

	status := l.Wait()
	if startErr != nil && !status.Requested {
		execErr := cmd.PrepareExecutionErrorFromErr(helper, startErr)
		execErr.ExitCode = status.Code()
		return execErr
	}
	if code := status.Code(); code != 0 {
		return &cmd.ExecutionError{
			Msg:      strings.Join(status.Lines(), "\n"),
			Err:      fmt.Errorf("stack exited: %s", strings.Join(status.Lines(), "; ")),
			ExitCode: code,
		}
	}
	return nil
}

// recordHandle owns the registry entry of the running launcher.
type recordHandle struct {
	registry *processes.Registry
	logger   log.Logger
	pid      int

	mu      sync.Mutex
	written bool
	removed bool
}

// trackRecord writes the registry entry once the wallet API is ready.
func trackRecord(l *launcher.Launcher, registry *processes.Registry, opts options, logger log.Logger) *recordHandle {
	h := &recordHandle{registry: registry, logger: logger, pid: os.Getpid()}
	if registry == nil {
		return h
	}

	l.OnReady(func(api launcher.APIInfo) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.removed {
			return
		}
		ticks, _ := processes.ReadStartTimeTicks(h.pid)
		path, err := registry.Write(processes.Record{
			PID:            h.pid,
			RunID:          l.RunID(),
			Backend:        string(opts.node.Kind),
			Network:        opts.node.Network,
			StateDir:       opts.stateDir,
			APIURL:         api.BaseURL,
			NodePID:        l.NodeService().PID(),
			WalletPID:      l.WalletService().PID(),
			Args:           os.Args[1:],
			StartTimeTicks: ticks,
		})
		if err != nil {
			logger.Error("failed to write process record", "error", err)
			return
		}
		h.written = true
		logger.Debug("process record written", "path", path)
	})
	return h
}

func (h *recordHandle) remove() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
	if !h.written {
		return
	}
	if err := h.registry.Remove(h.pid); err != nil {
		h.logger.Error("failed to remove process record", "error", err)
	}
}
