package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	utilviper "github.com/walletstack/cardano-launcher/internal/util/viper"
)

func TestBuildProfiledConfig_ProfileEnvWithDashes(t *testing.T) {
	t.Setenv("CARDANO_LAUNCHER_MY_TESTNET_NODE_BACKEND", "byron")

	profile := "my-testnet"
	mainv := utilviper.NewViper("nonexistent.yaml")
	mainv.Set(profile, map[string]any{})

	cfg := BuildProfiledConfig(profile, "nonexistent.yaml", mainv)
	require.Equal(t, "byron", cfg.GetString("node.backend"))
	require.Equal(t, profile, cfg.GetProfile())
}

func TestBuildProfiledConfig_MissingProfile(t *testing.T) {
	t.Setenv("CARDANO_LAUNCHER_STAGING_API_PORT", "8091")

	cfg := BuildProfiledConfig("staging", "nonexistent.yaml", utilviper.NewViper("nonexistent.yaml"))
	require.Equal(t, 8091, cfg.GetInt("api-port"))
	require.Equal(t, 42, cfg.GetIntOrElse("node.port", 42))
}

func TestGetDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := GetDefaultConfigPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "cardano-launcher"), path)

	file, err := GetDefaultConfigFilePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "cardano-launcher", "config.yaml"), file)
}

func TestGetConfigInitializesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardano-launcher", "config.yaml")

	cfg, err := GetConfig(path, "default", path)
	require.NoError(t, err)
	require.Equal(t, "jormungandr", cfg.GetString("node.backend"))
	require.Equal(t, "itn_rewards_v1", cfg.GetString("network"))
	require.Equal(t, filepath.Join(filepath.Dir(path), "state", "default"), cfg.GetString("state-dir"))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestGetConfigReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
testnet:
  network: testnet
  node:
    backend: byron
    extra-args: ["--trace", "--log-file={{ .StateDir }}/node.log"]
`), 0o600))

	cfg, err := GetConfig(path, "testnet", "/does/not/matter.yaml")
	require.NoError(t, err)
	require.Equal(t, "byron", cfg.GetString("node.backend"))
	require.Equal(t, []string{"--trace", "--log-file={{ .StateDir }}/node.log"}, cfg.GetStringSlice("node.extra-args"))
	require.Equal(t, path, cfg.GetPath())
}

func TestGetConfigMissingExplicitFile(t *testing.T) {
	_, err := GetConfig(filepath.Join(t.TempDir(), "nope.yaml"), "default", "/elsewhere.yaml")
	require.ErrorContains(t, err, "does not exist")
}

func TestBindFlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default:\n  api-port: 8090\n"), 0o600))

	cfg, err := GetConfig(path, "default", path)
	require.NoError(t, err)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("api-port", 0, "")
	require.NoError(t, cfg.BindFlag("api-port", flags.Lookup("api-port")))
	require.Equal(t, 8090, cfg.GetInt("api-port"))

	require.NoError(t, flags.Parse([]string{"--api-port", "9000"}))
	require.Equal(t, 9000, cfg.GetInt("api-port"))
}
