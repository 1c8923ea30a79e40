//go:build unix

package start

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/walletstack/cardano-launcher/internal/backend"
	"github.com/walletstack/cardano-launcher/internal/cmd"
	"github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/config"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
	"github.com/walletstack/cardano-launcher/internal/launcher"
	"github.com/walletstack/cardano-launcher/internal/processes"
	"github.com/walletstack/cardano-launcher/internal/service"
	cmdtest "github.com/walletstack/cardano-launcher/test/cmd"
	cfgtest "github.com/walletstack/cardano-launcher/test/config"
)

type scriptBackend struct {
	node   service.Command
	wallet service.Command
}

func (b *scriptBackend) Kind() backend.Kind                { return "script" }
func (b *scriptBackend) Network() string                   { return "testnet" }
func (b *scriptBackend) Prepare(string) error              { return nil }
func (b *scriptBackend) NodeCommand() service.Command      { return b.node }
func (b *scriptBackend) WalletCommand(int) service.Command { return b.wallet }

func (b *scriptBackend) WaitForNode(_ context.Context, node *service.Service) error {
	select {
	case <-node.Done():
		return backend.ErrNodeExited
	default:
		return nil
	}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func useBackend(t *testing.T, b backend.Backend) {
	t.Helper()
	orig := newBackend
	newBackend = func(backend.NodeConfig) (backend.Backend, error) { return b, nil }
	t.Cleanup(func() { newBackend = orig })
}

func useRegistry(t *testing.T) *processes.Registry {
	t.Helper()
	registry := &processes.Registry{Dir: t.TempDir()}
	orig := newRegistry
	newRegistry = func() (*processes.Registry, error) { return registry, nil }
	t.Cleanup(func() { newRegistry = orig })
	return registry
}

func walletAPI(t *testing.T) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/network/information" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

func mapConfig(values map[string]any) *cfgtest.MockConfigHook {
	get := func(key string) any { return values[key] }
	return &cfgtest.MockConfigHook{
		GetMock: get,
		GetStringMock: func(key string) string {
			s, _ := get(key).(string)
			return s
		},
		GetIntMock: func(key string) int {
			i, _ := get(key).(int)
			return i
		},
		GetBoolMock: func(key string) bool {
			b, _ := get(key).(bool)
			return b
		},
		GetDurationMock: func(key string) time.Duration {
			d, _ := get(key).(time.Duration)
			return d
		},
		GetStringSliceMock: func(key string) []string {
			s, _ := get(key).([]string)
			return s
		},
		GetPathMock: func() string { return "/home/user/.config/cardano-launcher/config.yaml" },
	}
}

func newHelper(t *testing.T, ctx context.Context, cfg config.Hook) (cmd.Helper, *bytes.Buffer) {
	t.Helper()
	command, err := NewStartCmd()
	require.NoError(t, err)
	streams, _, out, _ := iostreams.NewTestIOStreams()
	return &cmdtest.MockHelper{
		GetCmdMock:     func() *cobra.Command { return command },
		GetStreamsMock: func() *iostreams.IOStreams { return streams },
		GetConfigMock:  func() (config.Hook, error) { return cfg, nil },
		GetOutputFormatMock: func() (common.OutputFormat, error) {
			return common.OutputFormatStringToIota(cfg.GetString(common.OutputConfigPath))
		},
		GetContextMock: func() context.Context { return ctx },
	}, out
}

func baseOptions(t *testing.T, apiPort int) options {
	return options{
		stateDir:      t.TempDir(),
		node:          backend.NodeConfig{Kind: backend.KindByron, Network: "testnet"},
		apiPort:       apiPort,
		stopTimeout:   2 * time.Second,
		probeInterval: 20 * time.Millisecond,
	}
}

func TestResolveOptions(t *testing.T) {
	cfg := mapConfig(map[string]any{
		common.NetworkConfigPath:       "mainnet",
		common.BackendConfigPath:       "byron",
		common.ExtraArgsConfigPath:     []string{"--trace"},
		common.APIPortConfigPath:       8090,
		common.StopTimeoutConfigPath:   5 * time.Second,
		common.ProbeIntervalConfigPath: 100 * time.Millisecond,
	})
	helper, _ := newHelper(t, context.Background(), cfg)

	opts, err := resolveOptions(helper)
	require.NoError(t, err)
	require.Equal(t, backend.KindByron, opts.node.Kind)
	require.Equal(t, "mainnet", opts.node.Network)
	require.Equal(t, []string{"--trace"}, opts.node.ExtraArgs)
	require.Equal(t, 8090, opts.apiPort)
	require.Equal(t, 5*time.Second, opts.stopTimeout)
	require.Equal(t, 100*time.Millisecond, opts.node.PollInterval)
	require.Equal(t, "/home/user/.config/cardano-launcher/state/default", opts.stateDir)
}

func TestResolveOptionsDefaultsBackend(t *testing.T) {
	cfg := mapConfig(map[string]any{common.NetworkConfigPath: "itn_rewards_v1"})
	helper, _ := newHelper(t, context.Background(), cfg)

	opts, err := resolveOptions(helper)
	require.NoError(t, err)
	require.Equal(t, backend.Kind(common.DefaultBackend), opts.node.Kind)
}

func TestResolveOptionsRequiresNetwork(t *testing.T) {
	helper, _ := newHelper(t, context.Background(), mapConfig(map[string]any{}))

	_, err := resolveOptions(helper)
	var cfgErr *cmd.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveOptionsRejectsInvalidPort(t *testing.T) {
	cfg := mapConfig(map[string]any{
		common.NetworkConfigPath: "mainnet",
		common.APIPortConfigPath: 70000,
	})
	helper, _ := newHelper(t, context.Background(), cfg)

	_, err := resolveOptions(helper)
	require.ErrorContains(t, err, "--api-port")
}

func TestRunUnknownNetwork(t *testing.T) {
	helper, _ := newHelper(t, context.Background(), mapConfig(map[string]any{}))
	opts := baseOptions(t, 0)
	opts.node.Network = "no-such-network"

	err := run(helper, opts)
	var cfgErr *cmd.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, backend.ErrUnknownNetwork)
}

func TestRunUntilInterrupted(t *testing.T) {
	registry := useRegistry(t)
	useBackend(t, &scriptBackend{
		node: service.Command{
			Name:       writeScript(t, "cardano-node", "exec sleep 30"),
			StopSignal: syscall.SIGTERM,
		},
		wallet: service.Command{Name: writeScript(t, "cardano-wallet", "exec cat")},
	})
	port := walletAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	helper, out := newHelper(t, ctx, mapConfig(map[string]any{common.OutputConfigPath: "json"}))

	done := make(chan error, 1)
	go func() { done <- run(helper, baseOptions(t, port)) }()

	require.Eventually(t, func() bool {
		records, err := registry.List()
		return err == nil && len(records) == 1
	}, 10*time.Second, 20*time.Millisecond)

	records, err := registry.List()
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), records[0].PID)
	require.Equal(t, "testnet", records[0].Network)
	require.NotZero(t, records[0].NodePID)
	require.NotZero(t, records[0].WalletPID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("start did not return after interrupt")
	}

	var api launcher.APIInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &api))
	require.Equal(t, port, api.Port)
	require.Equal(t, launcher.NewAPIInfo(port).BaseURL, api.BaseURL)

	records, err = registry.List()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRunNodeFailure(t *testing.T) {
	registry := useRegistry(t)
	useBackend(t, &scriptBackend{
		node:   service.Command{Name: writeScript(t, "cardano-node", "sleep 0.5; exit 3")},
		wallet: service.Command{Name: writeScript(t, "cardano-wallet", "exec cat")},
	})
	port, err := backend.FreePort()
	require.NoError(t, err)

	helper, out := newHelper(t, context.Background(), mapConfig(map[string]any{common.OutputConfigPath: "json"}))

	err = run(helper, baseOptions(t, port))
	var execErr *cmd.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, 1, execErr.Code())
	require.Equal(t, "cardano-node exited with status 3\ncardano-wallet exited with status 0", execErr.Msg)

	var startErr *launcher.StartError
	require.True(t, errors.As(err, &startErr))
	require.Empty(t, out.String())

	records, err := registry.List()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRunWalletCrashAfterReady(t *testing.T) {
	useRegistry(t)
	useBackend(t, &scriptBackend{
		node: service.Command{
			Name:       writeScript(t, "cardano-node", "exec sleep 30"),
			StopSignal: syscall.SIGTERM,
		},
		wallet: service.Command{Name: writeScript(t, "cardano-wallet", "sleep 1; exit 2")},
	})
	port := walletAPI(t)

	helper, _ := newHelper(t, context.Background(), mapConfig(map[string]any{common.OutputConfigPath: "text"}))

	err := run(helper, baseOptions(t, port))
	var execErr *cmd.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, 1, execErr.Code())
	require.Contains(t, execErr.Msg, "cardano-wallet exited with status 2")
	require.Contains(t, execErr.Msg, "cardano-node exited with status SIGTERM")
}
