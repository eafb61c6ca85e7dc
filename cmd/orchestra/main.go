package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/orchestra/internal/cmd"
	"github.com/felixgeelhaar/orchestra/internal/exitcode"
)

func main() {
	// Cancelling the context aborts a run: no new items start, running ones
	// finish and are checkpointed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nInterrupted")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		exitcode.ExitWithError(err)
	}
}
