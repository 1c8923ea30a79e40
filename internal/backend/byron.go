package backend

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/walletstack/cardano-launcher/internal/service"
)

const (
	defaultByronNodeExe   = "cardano-node"
	defaultByronWalletExe = "cardano-wallet-byron"
	byronSocketFile       = "cardano-node.socket"
)

type byron struct {
	cfg      NodeConfig
	network  Network
	stateDir string
	args     []string
}

func newByron(cfg NodeConfig, network Network) *byron {
	if cfg.NodeExe == "" {
		cfg.NodeExe = defaultByronNodeExe
	}
	if cfg.WalletExe == "" {
		cfg.WalletExe = defaultByronWalletExe
	}
	return &byron{cfg: cfg, network: network}
}

func (b *byron) Kind() Kind      { return KindByron }
func (b *byron) Network() string { return b.network.Name }

func (b *byron) Prepare(stateDir string) error {
	if err := ensurePort(&b.cfg.NodePort); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(stateDir, "chain"), 0o755); err != nil {
		return fmt.Errorf("create chain directory: %w", err)
	}
	args, err := RenderArgs(b.cfg.ExtraArgs, TemplateData{
		StateDir: stateDir,
		Network:  b.network.Name,
		NodePort: b.cfg.NodePort,
	})
	if err != nil {
		return err
	}
	b.stateDir = stateDir
	b.args = args
	return nil
}

func (b *byron) socketPath() string {
	return filepath.Join(b.stateDir, byronSocketFile)
}

func (b *byron) NodeCommand() service.Command {
	args := []string{
		"run",
		"--topology", filepath.Join(b.cfg.ConfigDir, b.network.Name+"-topology.json"),
		"--database-path", filepath.Join(b.stateDir, "chain"),
		"--socket-path", b.socketPath(),
		"--config", filepath.Join(b.cfg.ConfigDir, "configuration.yaml"),
		"--port", strconv.Itoa(b.cfg.NodePort),
	}
	args = append(args, b.args...)
	return service.Command{
		Name:       b.cfg.NodeExe,
		Args:       args,
		Dir:        b.stateDir,
		StopSignal: syscall.SIGTERM,
	}
}

func (b *byron) WalletCommand(apiPort int) service.Command {
	args := []string{
		"serve",
		"--shutdown-handler",
		"--node-socket", b.socketPath(),
		"--port", strconv.Itoa(apiPort),
		"--database", filepath.Join(b.stateDir, "wallet"),
	}
	if b.network.Mainnet {
		args = append(args, "--mainnet")
	} else {
		genesis := b.network.GenesisFile
		if genesis == "" {
			genesis = "genesis.json"
		}
		args = append(args, "--testnet", filepath.Join(b.cfg.ConfigDir, genesis))
	}
	return service.Command{
		Name: b.cfg.WalletExe,
		Args: args,
		Dir:  b.stateDir,
	}
}

// WaitForNode waits for the node socket to accept connections.
func (b *byron) WaitForNode(ctx context.Context, node *service.Service) error {
	sock := b.socketPath()
	return pollNode(ctx, node, b.cfg.PollInterval, func() error {
		if _, err := os.Stat(sock); err != nil {
			return err
		}
		conn, err := net.DialTimeout("unix", sock, time.Second)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}
