//go:build unix

package ps

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/config"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
	"github.com/walletstack/cardano-launcher/internal/processes"
	cfgtest "github.com/walletstack/cardano-launcher/test/config"
)

func useRegistry(t *testing.T) *processes.Registry {
	t.Helper()
	registry := &processes.Registry{Dir: t.TempDir()}
	orig := newRegistry
	newRegistry = func() (*processes.Registry, error) { return registry, nil }
	t.Cleanup(func() { newRegistry = orig })
	return registry
}

func runPS(t *testing.T, output string, args ...string) (string, error) {
	t.Helper()
	command, err := NewPSCmd()
	require.NoError(t, err)

	streams, _, out, _ := iostreams.NewTestIOStreams()
	cfg := &cfgtest.MockConfigHook{
		GetStringMock: func(key string) string {
			if key == common.OutputConfigPath {
				return output
			}
			return ""
		},
	}
	ctx := context.WithValue(context.Background(), config.ConfigKey, config.Hook(cfg))
	ctx = context.WithValue(ctx, iostreams.StreamsKey, streams)

	command.SetArgs(args)
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	err = command.ExecuteContext(ctx)
	return out.String(), err
}

func TestNewPSCmd(t *testing.T) {
	cmd, err := NewPSCmd()
	require.NoError(t, err)
	require.Equal(t, "ps", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.ElementsMatch(t, []string{"stop", "prune"}, names)
}

func TestResolveTargets(t *testing.T) {
	records := []processes.StoredRecord{
		{Record: processes.Record{PID: 100}},
		{Record: processes.Record{PID: 200}},
	}

	t.Run("single pid", func(t *testing.T) {
		c := &psCmd{stopTimeout: 5 * time.Second}
		targets, err := c.resolveTargets([]string{"100"}, records)
		require.NoError(t, err)
		require.Len(t, targets, 1)
		require.Equal(t, 100, targets[0].PID)
	})

	t.Run("all flag", func(t *testing.T) {
		c := &psCmd{stopAll: true}
		targets, err := c.resolveTargets(nil, records)
		require.NoError(t, err)
		require.Len(t, targets, 2)
	})

	t.Run("all flag with pid", func(t *testing.T) {
		c := &psCmd{stopAll: true}
		_, err := c.resolveTargets([]string{"100"}, records)
		require.Error(t, err)
	})

	t.Run("unknown pid", func(t *testing.T) {
		c := &psCmd{}
		_, err := c.resolveTargets([]string{"300"}, records)
		require.ErrorContains(t, err, "300")
	})

	t.Run("invalid pid", func(t *testing.T) {
		c := &psCmd{}
		_, err := c.resolveTargets([]string{"abc"}, records)
		require.ErrorContains(t, err, "invalid PID")
	})
}

func TestListEmpty(t *testing.T) {
	useRegistry(t)
	out, err := runPS(t, "text")
	require.NoError(t, err)
	require.Contains(t, out, "No running cardano-launcher processes found.")
}

func TestListJSON(t *testing.T) {
	registry := useRegistry(t)
	_, err := registry.Write(processes.Record{
		PID:       os.Getpid(),
		RunID:     "run-1",
		Backend:   "byron",
		Network:   "testnet",
		StateDir:  "/tmp/state",
		APIURL:    "http://127.0.0.1:8090/v2/",
		NodePID:   11,
		WalletPID: 12,
	})
	require.NoError(t, err)

	out, err := runPS(t, "json")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	require.Equal(t, "testnet", items[0]["network"])
	require.Equal(t, "http://127.0.0.1:8090/v2/", items[0]["api_url"])
	require.Equal(t, string(processes.StatusRunning), items[0]["status"])
}

func TestListJQRawOutput(t *testing.T) {
	registry := useRegistry(t)
	_, err := registry.Write(processes.Record{
		PID:     os.Getpid(),
		Network: "mainnet",
		APIURL:  "http://127.0.0.1:8090/v2/",
	})
	require.NoError(t, err)

	out, err := runPS(t, "json", "--jq", ".[].api_url", "-r")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8090/v2/\n", out)
}

func TestListText(t *testing.T) {
	registry := useRegistry(t)
	_, err := registry.Write(processes.Record{
		PID:      os.Getpid(),
		Backend:  "jormungandr",
		Network:  "itn_rewards_v1",
		StateDir: "/tmp/state",
	})
	require.NoError(t, err)

	out, err := runPS(t, "text")
	require.NoError(t, err)
	require.Contains(t, out, "PID")
	require.Contains(t, out, "itn_rewards_v1")
	require.Contains(t, out, "running")
}

func TestStopPrunesExitedLauncher(t *testing.T) {
	registry := useRegistry(t)

	child := exec.Command("true")
	require.NoError(t, child.Run())
	pid := child.Process.Pid

	_, err := registry.Write(processes.Record{PID: pid, Network: "mainnet"})
	require.NoError(t, err)

	out, err := runPS(t, "json", "stop", strconv.Itoa(pid))
	require.NoError(t, err)

	var results []processStopResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.Equal(t, "pruned", results[0].Action)
	require.True(t, results[0].Success)

	_, err = registry.Get(pid)
	require.ErrorIs(t, err, processes.ErrRecordNotFound)
}

func TestPruneRemovesExitedLaunchers(t *testing.T) {
	registry := useRegistry(t)

	child := exec.Command("true")
	require.NoError(t, child.Run())
	_, err := registry.Write(processes.Record{PID: child.Process.Pid, Network: "testnet"})
	require.NoError(t, err)
	_, err = registry.Write(processes.Record{PID: os.Getpid(), Network: "mainnet"})
	require.NoError(t, err)

	out, err := runPS(t, "json", "prune")
	require.NoError(t, err)

	var results []processStopResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.Equal(t, child.Process.Pid, results[0].PID)

	records, err := registry.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, os.Getpid(), records[0].PID)
}

func TestStopRequiresTarget(t *testing.T) {
	useRegistry(t)
	_, err := runPS(t, "text", "stop")
	require.ErrorContains(t, err, "provide a launcher PID or use --all")
}

func TestRenderStopText(t *testing.T) {
	var out bytes.Buffer
	err := renderStopText(&out, []processStopResult{
		{PID: 42, Network: "testnet", Action: "stopped", Success: true},
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "42")
	require.Contains(t, out.String(), "stopped")
	require.Contains(t, out.String(), "-")
}

func TestStatusStylesCoverEveryStatus(t *testing.T) {
	for _, status := range []processes.Status{
		processes.StatusRunning,
		processes.StatusExited,
		processes.StatusStale,
		processes.StatusUnknown,
	} {
		_, ok := statusStyles[status]
		require.True(t, ok, status)
	}
}
