// Command verity verifies datasets against declarative data quality checks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/verity/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// commands report their own errors; only the exit code is left to set
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
