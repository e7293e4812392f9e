package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/3leaps/bucketd/internal/cmd"
)

// Injected via ldflags at build time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bucketd:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
