package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.yaml")
	require.NoError(t, InitDir(path, 0o755))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LAUNCHER_TEST_DIR", "/srv/cardano")

	require.Equal(t, filepath.Join(home, "state"), ExpandPath("~/state"))
	require.Equal(t, "/srv/cardano/state", ExpandPath("$LAUNCHER_TEST_DIR/state"))
	require.Equal(t, "relative", ExpandPath("relative"))
}
