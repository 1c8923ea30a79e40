package ps

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/walletstack/cardano-launcher/internal/cmd"
	"github.com/walletstack/cardano-launcher/internal/cmd/output/jq"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/verbs"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
	"github.com/walletstack/cardano-launcher/internal/meta"
	"github.com/walletstack/cardano-launcher/internal/processes"
	"github.com/walletstack/cardano-launcher/internal/util/normalizers"
)

// A launcher needs its own stop timeout twice over (wallet, then node).
const defaultStopTimeout = 45 * time.Second

var (
	use = verbs.PS.String()

	short = "List and stop running launchers"
	long  = normalizers.LongDesc(`List the launchers recorded in the local process registry together with
the node and wallet they supervise, and stop or prune them.`)
	example = normalizers.Examples(fmt.Sprintf(`
  # List running launchers
  %[1]s ps

  # Print the wallet API URL of each launcher
  %[1]s ps -o json --jq '.[].api_url' -r

  # Stop one launcher
  %[1]s ps stop 12345

  # Stop all launchers
  %[1]s ps stop --all

  # Remove records of launchers that are gone
  %[1]s ps prune
`, meta.CLIName))

	// newRegistry is replaced in tests.
	newRegistry = processes.DefaultRegistry

	statusStyles = map[processes.Status]lipgloss.Style{
		processes.StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		processes.StatusExited:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		processes.StatusStale:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		processes.StatusUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

type processListItem struct {
	PID       int              `json:"pid" yaml:"pid"`
	Status    processes.Status `json:"status" yaml:"status"`
	Backend   string           `json:"backend" yaml:"backend"`
	Network   string           `json:"network" yaml:"network"`
	APIURL    string           `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	NodePID   int              `json:"node_pid,omitempty" yaml:"node_pid,omitempty"`
	WalletPID int              `json:"wallet_pid,omitempty" yaml:"wallet_pid,omitempty"`
	StateDir  string           `json:"state_dir" yaml:"state_dir"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Record    string           `json:"record_file" yaml:"record_file"`
}

type processStopResult struct {
	PID     int    `json:"pid" yaml:"pid"`
	Network string `json:"network" yaml:"network"`
	Action  string `json:"action" yaml:"action"`
	Success bool   `json:"success" yaml:"success"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type psCmd struct {
	stopAll     bool
	stopTimeout time.Duration
}

// NewPSCmd builds the ps verb.
func NewPSCmd() (*cobra.Command, error) {
	c := &psCmd{
		stopTimeout: defaultStopTimeout,
	}

	cmdObj := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    c.runList,
	}
	jq.AddFlags(cmdObj.Flags())

	stopCmd := &cobra.Command{
		Use:   verbs.Stop.String() + " <pid>",
		Short: "Stop running launchers",
		Long: "Stop one launcher by PID, or every recorded launcher with --all. " +
			"The launcher stops its wallet and node before exiting.",
		RunE: c.runStop,
	}
	stopCmd.Flags().BoolVar(&c.stopAll, "all", false, "Stop all recorded launchers.")
	stopCmd.Flags().DurationVar(&c.stopTimeout, "timeout", c.stopTimeout,
		"How long to wait for a launcher to exit.")
	jq.AddFlags(stopCmd.Flags())
	cmdObj.AddCommand(stopCmd)

	pruneCmd := &cobra.Command{
		Use:   verbs.Prune.String(),
		Short: "Remove records of launchers that are no longer running",
		Args:  cobra.NoArgs,
		RunE:  c.runPrune,
	}
	jq.AddFlags(pruneCmd.Flags())
	cmdObj.AddCommand(pruneCmd)

	return cmdObj, nil
}

func (c *psCmd) runList(cmdObj *cobra.Command, args []string) error {
	helper := cmd.BuildHelper(cmdObj, args)

	registry, err := newRegistry()
	if err != nil {
		return cmd.PrepareExecutionError("failed to open the process registry", err, cmdObj)
	}
	records, err := registry.List()
	if err != nil {
		return cmd.PrepareExecutionError("failed to list launchers", err, cmdObj)
	}

	items := make([]processListItem, 0, len(records))
	for _, record := range records {
		state := processes.Inspect(record.Record)
		items = append(items, processListItem{
			PID:       record.PID,
			Status:    state.Status,
			Backend:   record.Backend,
			Network:   record.Network,
			APIURL:    record.APIURL,
			NodePID:   record.NodePID,
			WalletPID: record.WalletPID,
			StateDir:  record.StateDir,
			CreatedAt: record.CreatedAt,
			Record:    record.File,
		})
	}

	out := helper.GetStreams().Out
	return jq.Render(helper, items, func(w io.Writer) error {
		return renderListText(w, items, iostreams.IsTerminal(out))
	})
}

func (c *psCmd) runStop(cmdObj *cobra.Command, args []string) error {
	helper := cmd.BuildHelper(cmdObj, args)

	registry, err := newRegistry()
	if err != nil {
		return cmd.PrepareExecutionError("failed to open the process registry", err, cmdObj)
	}
	records, err := registry.List()
	if err != nil {
		return cmd.PrepareExecutionError("failed to load launcher records", err, cmdObj)
	}

	targets, err := c.resolveTargets(args, records)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	results := make([]processStopResult, 0, len(targets))
	var stopErrors []error
	for _, target := range targets {
		result := stopLauncher(registry, target, c.stopTimeout)
		results = append(results, result)
		if !result.Success {
			stopErrors = append(stopErrors, fmt.Errorf("pid %d: %s", result.PID, result.Detail))
		}
	}

	if err := jq.Render(helper, results, func(w io.Writer) error {
		return renderStopText(w, results)
	}); err != nil {
		return err
	}

	if len(stopErrors) > 0 {
		return cmd.PrepareExecutionError(
			"one or more launchers failed to stop",
			errors.Join(stopErrors...),
			cmdObj,
		)
	}
	return nil
}

func (c *psCmd) runPrune(cmdObj *cobra.Command, args []string) error {
	helper := cmd.BuildHelper(cmdObj, args)

	registry, err := newRegistry()
	if err != nil {
		return cmd.PrepareExecutionError("failed to open the process registry", err, cmdObj)
	}
	pruned, err := registry.Prune()
	if err != nil {
		return cmd.PrepareExecutionError("failed to prune launcher records", err, cmdObj)
	}

	results := make([]processStopResult, 0, len(pruned))
	for _, record := range pruned {
		results = append(results, processStopResult{
			PID:     record.PID,
			Network: record.Network,
			Action:  "pruned",
			Success: true,
		})
	}
	return jq.Render(helper, results, func(w io.Writer) error {
		return renderStopText(w, results)
	})
}

func (c *psCmd) resolveTargets(args []string, records []processes.StoredRecord) ([]processes.StoredRecord, error) {
	if c.stopAll {
		if len(args) > 0 {
			return nil, fmt.Errorf("do not provide a PID when using --all")
		}
		return records, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("provide a launcher PID or use --all")
	}

	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return nil, fmt.Errorf("invalid PID %q", args[0])
	}

	for _, record := range records {
		if record.PID == pid {
			return []processes.StoredRecord{record}, nil
		}
	}
	return nil, fmt.Errorf("no launcher record found for PID %d", pid)
}

func stopLauncher(registry *processes.Registry, record processes.StoredRecord, timeout time.Duration) processStopResult {
	result := processStopResult{
		PID:     record.PID,
		Network: record.Network,
	}

	state := processes.Inspect(record.Record)
	switch state.Status {
	case processes.StatusRunning:
		result.Action = "stop"
		if err := processes.Terminate(record.PID, timeout); err != nil {
			result.Detail = err.Error()
			return result
		}
		// The launcher removes its own record on exit; this covers a crash
		// between the stack stopping and that cleanup.
		if err := registry.Remove(record.PID); err != nil {
			result.Detail = fmt.Sprintf("launcher stopped but failed to remove record: %v", err)
			return result
		}
		result.Action = "stopped"
		result.Success = true
		result.Detail = "sent SIGTERM, wallet and node stopped"
		return result
	case processes.StatusExited, processes.StatusStale:
		result.Action = "prune"
		if err := registry.Remove(record.PID); err != nil {
			result.Detail = fmt.Sprintf("failed to remove stale record: %v", err)
			return result
		}
		result.Action = "pruned"
		result.Success = true
		result.Detail = "removed stale launcher record"
		return result
	default:
		result.Action = "inspect"
		result.Detail = state.CheckError
		if result.Detail == "" {
			result.Detail = "unable to determine process state"
		}
		return result
	}
}

func renderListText(out io.Writer, items []processListItem, color bool) error {
	if len(items) == 0 {
		_, err := fmt.Fprintf(out, "No running %s processes found.\n", meta.CLIName)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PID\tSTATUS\tBACKEND\tNETWORK\tNODE\tWALLET\tAPI\tSTARTED"); err != nil {
		return err
	}
	for _, item := range items {
		status := string(item.Status)
		if color {
			status = statusStyles[item.Status].Render(status)
		}
		if _, err := fmt.Fprintf(
			tw,
			"%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.PID,
			status,
			displayOrDash(item.Backend),
			displayOrDash(item.Network),
			pidOrDash(item.NodePID),
			pidOrDash(item.WalletPID),
			displayOrDash(item.APIURL),
			item.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func renderStopText(out io.Writer, results []processStopResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintf(out, "No %s processes matched.\n", meta.CLIName)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PID\tNETWORK\tACTION\tSUCCESS\tDETAIL"); err != nil {
		return err
	}
	for _, result := range results {
		if _, err := fmt.Fprintf(
			tw,
			"%d\t%s\t%s\t%t\t%s\n",
			result.PID,
			displayOrDash(result.Network),
			result.Action,
			result.Success,
			displayOrDash(result.Detail),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func displayOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func pidOrDash(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}
