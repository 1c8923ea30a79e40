package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/walletstack/cardano-launcher/internal/build"
	"github.com/walletstack/cardano-launcher/internal/cmd/root"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
)

var (
	// Set with -ldflags "-X main.version=..."
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Signals stay captured until exit so a second interrupt does not kill
	// the launcher while it is still stopping its children.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := root.Execute(ctx, iostreams.GetOSIOStreams(), &build.Info{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	stop()
	os.Exit(code)
}
