// Package backend builds the node and wallet commands for each supported
// node implementation and knows how to tell when the node is ready.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/walletstack/cardano-launcher/internal/service"
)

// Kind selects the node implementation.
type Kind string

const (
	KindJormungandr Kind = "jormungandr"
	KindByron       Kind = "byron"

	DefaultPollInterval = 250 * time.Millisecond
)

var (
	ErrUnknownBackend = errors.New("unknown node backend")
	ErrNodeExited     = errors.New("node exited before it was ready")
)

func Kinds() []Kind {
	return []Kind{KindJormungandr, KindByron}
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindJormungandr, KindByron:
		return k, nil
	default:
		return "", fmt.Errorf("%w %q (supported: %s, %s)", ErrUnknownBackend, s, KindJormungandr, KindByron)
	}
}

// NodeConfig is the resolved configuration of the node side of a stack.
type NodeConfig struct {
	Kind    Kind
	Network string
	// ExtraArgs are appended to the node command after template expansion.
	ExtraArgs []string
	NodeExe   string
	WalletExe string
	// ConfigDir holds network files (genesis, topology, node configuration).
	ConfigDir string
	// RestPort is the jormungandr REST port. Zero allocates a free port.
	RestPort int
	// NodePort is the node's peer-to-peer listen port. Zero allocates one.
	NodePort     int
	PollInterval time.Duration
	// NetworksFile replaces the built-in network table when set.
	NetworksFile string
}

// Backend is one node implementation.
type Backend interface {
	Kind() Kind
	Network() string
	// Prepare allocates ports, renders arguments and writes any generated
	// files below stateDir. It must be called before the command builders.
	Prepare(stateDir string) error
	NodeCommand() service.Command
	WalletCommand(apiPort int) service.Command
	// WaitForNode blocks until the node accepts connections, node exits, or
	// ctx is done.
	WaitForNode(ctx context.Context, node *service.Service) error
}

func New(cfg NodeConfig) (Backend, error) {
	kind, err := ParseKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}
	cfg.Kind = kind
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	table, err := LoadNetworks(cfg.NetworksFile)
	if err != nil {
		return nil, err
	}
	network, err := table.Lookup(kind, cfg.Network)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindJormungandr:
		return newJormungandr(cfg, network), nil
	case KindByron:
		return newByron(cfg, network), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, kind)
}

// pollNode runs check every interval until it succeeds.
func pollNode(ctx context.Context, node *service.Service, interval time.Duration, check func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := check(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			// Teardown triggered by the node exiting reports the exit.
			select {
			case <-node.Done():
				return nodeExited(node)
			default:
				return ctx.Err()
			}
		case <-node.Done():
			return nodeExited(node)
		case <-ticker.C:
		}
	}
}

func nodeExited(node *service.Service) error {
	status, _ := node.Exit()
	return fmt.Errorf("%w: %s", ErrNodeExited, status)
}
