package verbs

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	Start    = VerbValue("start")
	PS       = VerbValue("ps")
	Stop     = VerbValue("stop")
	Prune    = VerbValue("prune")
	Networks = VerbValue("networks")
)

// VerbValue names one CLI verb.
type VerbValue string

func (v VerbValue) String() string {
	return string(v)
}

// NoPositionalArgs rejects positional arguments for verbs configured only
// through flags and the profile configuration.
func NoPositionalArgs(c *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q: %s takes flags only, see '%s --help'",
			args[0], c.Name(), c.CommandPath())
	}
	return nil
}
