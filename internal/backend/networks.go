package backend

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"
)

//go:embed networks.yaml
var defaultNetworks []byte

var ErrUnknownNetwork = errors.New("unknown network")

// Peer is a jormungandr trusted peer.
type Peer struct {
	Address string `json:"address" yaml:"address"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Network holds the per-network parameters a backend needs. Which fields are
// set depends on the backend kind.
type Network struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// jormungandr
	GenesisHash  string `json:"genesisHash,omitempty" yaml:"genesisHash,omitempty"`
	GenesisBlock string `json:"genesisBlock,omitempty" yaml:"genesisBlock,omitempty"`
	SecretFile   string `json:"secretFile,omitempty" yaml:"secretFile,omitempty"`
	TrustedPeers []Peer `json:"trustedPeers,omitempty" yaml:"trustedPeers,omitempty"`

	// byron
	ProtocolMagic int    `json:"protocolMagic,omitempty" yaml:"protocolMagic,omitempty"`
	Mainnet       bool   `json:"mainnet,omitempty" yaml:"mainnet,omitempty"`
	GenesisFile   string `json:"genesisFile,omitempty" yaml:"genesisFile,omitempty"`
}

// NetworkTable maps a backend kind to its known networks.
type NetworkTable map[Kind][]Network

// DefaultNetworks returns the built-in table.
func DefaultNetworks() NetworkTable {
	table, err := ParseNetworks(defaultNetworks)
	if err != nil {
		panic(fmt.Sprintf("embedded network table is invalid: %v", err))
	}
	return table
}

// LoadNetworks reads a table from path, or returns the built-in one when path
// is empty.
func LoadNetworks(path string) (NetworkTable, error) {
	if path == "" {
		return DefaultNetworks(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network table: %w", err)
	}
	table, err := ParseNetworks(data)
	if err != nil {
		return nil, fmt.Errorf("parse network table %s: %w", path, err)
	}
	return table, nil
}

// ParseNetworks decodes and validates a network table. Every jormungandr
// network must name its genesis, by hash or by block file.
func ParseNetworks(data []byte) (NetworkTable, error) {
	var table NetworkTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	for kind, networks := range table {
		if _, err := ParseKind(string(kind)); err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(networks))
		for _, n := range networks {
			if n.Name == "" {
				return nil, fmt.Errorf("%s: network without a name", kind)
			}
			if _, dup := seen[n.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate network %q", kind, n.Name)
			}
			seen[n.Name] = struct{}{}
			if kind == KindJormungandr && n.GenesisHash == "" && n.GenesisBlock == "" {
				return nil, fmt.Errorf("%s: network %q needs genesisHash or genesisBlock", kind, n.Name)
			}
		}
	}
	return table, nil
}

// Lookup finds a network by name for the given backend.
func (t NetworkTable) Lookup(kind Kind, name string) (Network, error) {
	for _, n := range t[kind] {
		if n.Name == name {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w %q for backend %s (known: %v)", ErrUnknownNetwork, name, kind, t.Names(kind))
}

// Names lists the network names for kind, sorted.
func (t NetworkTable) Names(kind Kind) []string {
	names := make([]string, 0, len(t[kind]))
	for _, n := range t[kind] {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	return names
}
