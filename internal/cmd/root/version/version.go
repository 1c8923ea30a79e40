package version

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/walletstack/cardano-launcher/internal/build"
	"github.com/walletstack/cardano-launcher/internal/cmd"
	"github.com/walletstack/cardano-launcher/internal/cmd/output/jq"
	"github.com/walletstack/cardano-launcher/internal/meta"
	"github.com/walletstack/cardano-launcher/internal/util/normalizers"
)

const (
	ShowCommitFlagName   = "show-commit"
	ShowCommitConfigPath = "version." + ShowCommitFlagName
)

var (
	versionUse     = "version"
	versionShort   = fmt.Sprintf("Print the %s version", meta.CLIName)
	versionLong    = normalizers.LongDesc(`The version command prints the version and other optional build information.`)
	versionExample = normalizers.Examples(fmt.Sprintf(`
		# Print the simple version
		%[1]s version
		# Print the version and the git commit hash
		%[1]s version --show-commit
		`, meta.CLIName))
)

// NewVersionCmd builds the version command.
func NewVersionCmd() *cobra.Command {
	rv := &cobra.Command{
		Use:     versionUse,
		Short:   versionShort,
		Long:    versionLong,
		Example: versionExample,
		Args:    cobra.NoArgs,
		PreRunE: func(c *cobra.Command, args []string) error {
			return bindFlags(cmd.BuildHelper(c, args))
		},
		RunE: func(c *cobra.Command, args []string) error {
			helper := cmd.BuildHelper(c, args)
			if err := validate(helper); err != nil {
				return err
			}
			return run(helper)
		},
	}

	rv.Flags().Bool(ShowCommitFlagName, false,
		fmt.Sprintf(`Show the git commit hash and build date.
- Config path: [ %s ]`, ShowCommitConfigPath))
	jq.AddFlags(rv.Flags())

	return rv
}

func bindFlags(helper cmd.Helper) error {
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	f := helper.GetCmd().Flags().Lookup(ShowCommitFlagName)
	return cfg.BindFlag(ShowCommitConfigPath, f)
}

func validate(helper cmd.Helper) error {
	_, err := helper.GetBuildInfo()
	return err
}

func run(helper cmd.Helper) error {
	info, err := helper.GetBuildInfo()
	if err != nil {
		return err
	}
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}

	result := build.Info{Version: info.Version}
	if cfg.GetBool(ShowCommitConfigPath) {
		result.Commit = info.Commit
		result.Date = info.Date
	}

	return jq.Render(helper, result, func(out io.Writer) error {
		return printText(result, out)
	})
}

func printText(info build.Info, out io.Writer) error {
	if _, err := fmt.Fprint(out, info.Version); err != nil {
		return err
	}
	if info.Commit != "" {
		if _, err := fmt.Fprintf(out, " (%s, built %s)", info.Commit, info.Date); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(out)
	return err
}
