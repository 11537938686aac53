// Command codison is a coding agent for the terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spetersoncode/codison/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
