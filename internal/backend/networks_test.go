package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultNetworks(t *testing.T) {
	table := DefaultNetworks()

	itn, err := table.Lookup(KindJormungandr, "itn_rewards_v1")
	require.NoError(t, err)
	require.Len(t, itn.GenesisHash, 64)
	require.NotEmpty(t, itn.TrustedPeers)

	mainnet, err := table.Lookup(KindByron, "mainnet")
	require.NoError(t, err)
	require.True(t, mainnet.Mainnet)
	require.Equal(t, 764824073, mainnet.ProtocolMagic)

	require.Equal(t, []string{"itn_rewards_v1", "self"}, table.Names(KindJormungandr))
}

func TestLookupUnknownNetwork(t *testing.T) {
	_, err := DefaultNetworks().Lookup(KindByron, "itn_rewards_v1")
	require.ErrorIs(t, err, ErrUnknownNetwork)
	require.Contains(t, err.Error(), "mainnet")
}

func TestParseNetworksValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  string
	}{
		{
			name: "unknown backend",
			data: "shelley:\n  - name: x\n",
			err:  "unknown node backend",
		},
		{
			name: "missing name",
			data: "byron:\n  - mainnet: true\n",
			err:  "network without a name",
		},
		{
			name: "duplicate",
			data: "byron:\n  - name: a\n  - name: a\n",
			err:  "duplicate network",
		},
		{
			name: "jormungandr without genesis",
			data: "jormungandr:\n  - name: custom\n",
			err:  `network "custom" needs genesisHash or genesisBlock`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNetworks([]byte(tt.data))
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestLoadNetworksRejectsJormungandrWithoutGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jormungandr:\n  - name: custom\n"), 0o600))

	_, err := LoadNetworks(path)
	require.ErrorContains(t, err, "needs genesisHash or genesisBlock")

	_, err = New(NodeConfig{Kind: KindJormungandr, Network: "custom", NetworksFile: path})
	require.Error(t, err)
}

func TestLoadNetworksFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
byron:
  - name: staging
    protocolMagic: 633343913
    genesisFile: staging-genesis.json
`), 0o600))

	table, err := LoadNetworks(path)
	require.NoError(t, err)

	staging, err := table.Lookup(KindByron, "staging")
	require.NoError(t, err)
	require.Equal(t, 633343913, staging.ProtocolMagic)
	require.Equal(t, "staging-genesis.json", staging.GenesisFile)

	_, err = LoadNetworks(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRenderArgs(t *testing.T) {
	args, err := RenderArgs([]string{
		"--log-file={{ .StateDir }}/node.log",
		"--tag={{ .Network | upper }}",
		"--port={{ add .NodePort 1 }}",
		"--plain",
	}, TemplateData{StateDir: "/var/lib/launcher", Network: "testnet", NodePort: 3000})
	require.NoError(t, err)
	require.Equal(t, []string{
		"--log-file=/var/lib/launcher/node.log",
		"--tag=TESTNET",
		"--port=3001",
		"--plain",
	}, args)

	_, err = RenderArgs([]string{"{{ .Missing }}"}, TemplateData{})
	require.Error(t, err)

	_, err = RenderArgs([]string{"{{ .StateDir"}, TemplateData{})
	require.Error(t, err)
}

func TestFreePort(t *testing.T) {
	port, err := FreePort()
	require.NoError(t, err)
	require.Greater(t, port, 0)

	fixed := 1234
	require.NoError(t, ensurePort(&fixed))
	require.Equal(t, 1234, fixed)
}
