package backend

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/walletstack/cardano-launcher/internal/service"
)

const (
	defaultJormungandrExe       = "jormungandr"
	defaultJormungandrWalletExe = "cardano-wallet-jormungandr"
	jormungandrConfigFile       = "jormungandr-config.yaml"
)

type jormungandrConfig struct {
	Storage string           `yaml:"storage"`
	Rest    jormungandrRest  `yaml:"rest"`
	P2P     jormungandrP2P   `yaml:"p2p"`
	Log     []jormungandrLog `yaml:"log"`
}

type jormungandrRest struct {
	Listen string `yaml:"listen"`
}

type jormungandrP2P struct {
	PublicAddress string            `yaml:"public_address"`
	TrustedPeers  []jormungandrPeer `yaml:"trusted_peers,omitempty"`
}

type jormungandrPeer struct {
	Address string `yaml:"address"`
	ID      string `yaml:"id,omitempty"`
}

type jormungandrLog struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

type jormungandr struct {
	cfg      NodeConfig
	network  Network
	stateDir string
	args     []string
	// hash is the genesis block hash shared by the node and wallet commands.
	hash string
}

func newJormungandr(cfg NodeConfig, network Network) *jormungandr {
	if cfg.NodeExe == "" {
		cfg.NodeExe = defaultJormungandrExe
	}
	if cfg.WalletExe == "" {
		cfg.WalletExe = defaultJormungandrWalletExe
	}
	return &jormungandr{cfg: cfg, network: network}
}

func (j *jormungandr) Kind() Kind      { return KindJormungandr }
func (j *jormungandr) Network() string { return j.network.Name }

func (j *jormungandr) Prepare(stateDir string) error {
	hash := j.genesisHash()
	if hash == "" && j.network.GenesisBlock == "" {
		return fmt.Errorf("network %q has no genesis block hash", j.network.Name)
	}

	if err := ensurePort(&j.cfg.RestPort); err != nil {
		return err
	}
	if err := ensurePort(&j.cfg.NodePort); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(stateDir, "chain"), 0o755); err != nil {
		return fmt.Errorf("create chain directory: %w", err)
	}

	args, err := RenderArgs(j.cfg.ExtraArgs, TemplateData{
		StateDir: stateDir,
		Network:  j.network.Name,
		NodePort: j.cfg.NodePort,
		RestPort: j.cfg.RestPort,
	})
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(j.nodeConfig(stateDir))
	if err != nil {
		return fmt.Errorf("encode node config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, jormungandrConfigFile), data, 0o600); err != nil {
		return fmt.Errorf("write node config: %w", err)
	}

	j.stateDir = stateDir
	j.args = args
	j.hash = hash
	return nil
}

func (j *jormungandr) nodeConfig(stateDir string) jormungandrConfig {
	peers := make([]jormungandrPeer, 0, len(j.network.TrustedPeers))
	for _, p := range j.network.TrustedPeers {
		peers = append(peers, jormungandrPeer{Address: p.Address, ID: p.ID})
	}
	return jormungandrConfig{
		Storage: filepath.Join(stateDir, "chain"),
		Rest:    jormungandrRest{Listen: j.restAddress()},
		P2P: jormungandrP2P{
			PublicAddress: "/ip4/127.0.0.1/tcp/" + strconv.Itoa(j.cfg.NodePort),
			TrustedPeers:  peers,
		},
		Log: []jormungandrLog{{Format: "plain", Level: "info", Output: "stderr"}},
	}
}

func (j *jormungandr) restAddress() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(j.cfg.RestPort))
}

// genesisHash prefers the network table and falls back to the
// genesis-hash.txt written next to a locally produced block0.
func (j *jormungandr) genesisHash() string {
	if j.network.GenesisHash != "" {
		return j.network.GenesisHash
	}
	data, err := os.ReadFile(filepath.Join(j.cfg.ConfigDir, "genesis-hash.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (j *jormungandr) NodeCommand() service.Command {
	args := []string{"--config", filepath.Join(j.stateDir, jormungandrConfigFile)}
	if j.network.GenesisBlock != "" {
		args = append(args, "--genesis-block", filepath.Join(j.cfg.ConfigDir, j.network.GenesisBlock))
	} else {
		args = append(args, "--genesis-block-hash", j.hash)
	}
	if j.network.SecretFile != "" {
		args = append(args, "--secret", filepath.Join(j.cfg.ConfigDir, j.network.SecretFile))
	}
	args = append(args, j.args...)

	return service.Command{
		Name:       j.cfg.NodeExe,
		Args:       args,
		Dir:        j.stateDir,
		StopSignal: syscall.SIGTERM,
	}
}

func (j *jormungandr) WalletCommand(apiPort int) service.Command {
	args := []string{
		"serve",
		"--shutdown-handler",
		"--node-port", strconv.Itoa(j.cfg.RestPort),
		"--port", strconv.Itoa(apiPort),
		"--database", filepath.Join(j.stateDir, "wallet"),
	}
	if j.hash != "" {
		args = append(args, "--genesis-block-hash", j.hash)
	}
	return service.Command{
		Name: j.cfg.WalletExe,
		Args: args,
		Dir:  j.stateDir,
	}
}

// WaitForNode waits for the REST listener to accept connections.
func (j *jormungandr) WaitForNode(ctx context.Context, node *service.Service) error {
	addr := j.restAddress()
	return pollNode(ctx, node, j.cfg.PollInterval, func() error {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}
