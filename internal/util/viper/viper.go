package viper

import (
	"strings"

	v "github.com/spf13/viper"

	"github.com/walletstack/cardano-launcher/internal/meta"
	"github.com/walletstack/cardano-launcher/internal/util"
)

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// InitializeDefaultViper loads path, creating the file with defaultValues when
// it is missing or empty.
func InitializeDefaultViper(defaultValues map[string]any, path string) (*v.Viper, error) {
	if err := util.InitDir(path, 0o755); err != nil {
		return nil, err
	}

	rv := NewViper(path)
	if len(rv.AllSettings()) == 0 {
		if err := rv.MergeConfigMap(defaultValues); err != nil {
			return nil, err
		}
		if err := rv.WriteConfig(); err != nil {
			return nil, err
		}
	}
	return rv, nil
}

func NewViperE(path string) (*v.Viper, error) {
	rv := newViper(path)
	if err := rv.ReadInConfig(); err != nil {
		return nil, err
	}
	return rv, nil
}

func NewViper(path string) *v.Viper {
	rv := newViper(path)
	_ = rv.ReadInConfig()
	return rv
}

// ConfigureEnvVars makes vip read CARDANO_LAUNCHER-style variables under
// prefix, e.g. prefix "CARDANO_LAUNCHER_TESTNET" maps node.backend to
// CARDANO_LAUNCHER_TESTNET_NODE_BACKEND.
func ConfigureEnvVars(vip *v.Viper, prefix string) {
	vip.SetEnvPrefix(prefix)
	vip.SetEnvKeyReplacer(envKeyReplacer)
	vip.AutomaticEnv()
}

func newViper(path string) *v.Viper {
	rv := v.New()
	rv.SetConfigFile(path)
	ConfigureEnvVars(rv, meta.EnvPrefix)
	return rv
}
