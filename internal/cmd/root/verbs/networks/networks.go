package networks

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/walletstack/cardano-launcher/internal/backend"
	"github.com/walletstack/cardano-launcher/internal/cmd"
	"github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/cmd/output/jq"
	"github.com/walletstack/cardano-launcher/internal/cmd/root/verbs"
	"github.com/walletstack/cardano-launcher/internal/meta"
	"github.com/walletstack/cardano-launcher/internal/util"
	"github.com/walletstack/cardano-launcher/internal/util/normalizers"
)

var (
	networksUse   = verbs.Networks.String()
	networksShort = "List the networks each node backend can join"
	networksLong  = normalizers.LongDesc(`List the known networks per node backend together with the genesis
parameters the launcher passes to the node and wallet.`)
	networksExample = normalizers.Examples(fmt.Sprintf(`
  # List every network
  %[1]s networks

  # List byron networks only
  %[1]s networks --backend byron

  # List networks from a custom table
  %[1]s networks --networks-file ./networks.yaml -o yaml
`, meta.CLIName))
)

type networkItem struct {
	Backend       backend.Kind   `json:"backend" yaml:"backend"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	GenesisHash   string         `json:"genesis_hash,omitempty" yaml:"genesis_hash,omitempty"`
	GenesisBlock  string         `json:"genesis_block,omitempty" yaml:"genesis_block,omitempty"`
	TrustedPeers  []backend.Peer `json:"trusted_peers,omitempty" yaml:"trusted_peers,omitempty"`
	ProtocolMagic int            `json:"protocol_magic,omitempty" yaml:"protocol_magic,omitempty"`
	Mainnet       bool           `json:"mainnet,omitempty" yaml:"mainnet,omitempty"`
}

// NewNetworksCmd builds the networks verb.
func NewNetworksCmd() (*cobra.Command, error) {
	rv := &cobra.Command{
		Use:     networksUse,
		Short:   networksShort,
		Long:    networksLong,
		Example: networksExample,
		Args:    verbs.NoPositionalArgs,
		RunE: func(c *cobra.Command, args []string) error {
			helper := cmd.BuildHelper(c, args)
			kinds, err := validate(helper)
			if err != nil {
				return err
			}
			return run(helper, kinds)
		},
	}

	rv.Flags().String(common.BackendFlagName, "",
		"Only list networks of this backend.")
	rv.Flags().String(common.NetworksFileFlagName, "",
		fmt.Sprintf(`YAML network table replacing the built-in one.
- Config path: [ %s ]`, common.NetworksFileConfigPath))
	jq.AddFlags(rv.Flags())

	return rv, nil
}

func validate(helper cmd.Helper) ([]backend.Kind, error) {
	name, err := helper.GetCmd().Flags().GetString(common.BackendFlagName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return backend.Kinds(), nil
	}
	kind, err := backend.ParseKind(name)
	if err != nil {
		return nil, &cmd.ConfigurationError{Err: err}
	}
	return []backend.Kind{kind}, nil
}

func run(helper cmd.Helper, kinds []backend.Kind) error {
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	path, err := helper.GetCmd().Flags().GetString(common.NetworksFileFlagName)
	if err != nil {
		return err
	}
	if path == "" {
		path = cfg.GetString(common.NetworksFileConfigPath)
	}

	table, err := backend.LoadNetworks(util.ExpandPath(path))
	if err != nil {
		return cmd.PrepareExecutionErrorWithHelper(helper, "failed to load the network table", err)
	}

	var items []networkItem
	for _, kind := range kinds {
		for _, name := range table.Names(kind) {
			n, _ := table.Lookup(kind, name)
			items = append(items, networkItem{
				Backend:       kind,
				Name:          n.Name,
				Description:   n.Description,
				GenesisHash:   n.GenesisHash,
				GenesisBlock:  n.GenesisBlock,
				TrustedPeers:  n.TrustedPeers,
				ProtocolMagic: n.ProtocolMagic,
				Mainnet:       n.Mainnet,
			})
		}
	}

	return jq.Render(helper, items, func(out io.Writer) error {
		return printText(out, items)
	})
}

func printText(out io.Writer, items []networkItem) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "BACKEND\tNETWORK\tGENESIS\tDESCRIPTION"); err != nil {
		return err
	}
	for _, item := range items {
		genesis := item.GenesisHash
		switch {
		case genesis == "" && item.GenesisBlock != "":
			genesis = item.GenesisBlock
		case genesis == "" && item.ProtocolMagic != 0:
			genesis = "magic " + strconv.Itoa(item.ProtocolMagic)
		case genesis == "":
			genesis = "-"
		}
		description := item.Description
		if description == "" {
			description = "-"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.Backend, item.Name, genesis, description); err != nil {
			return err
		}
	}
	return tw.Flush()
}
