// cmd/marionette/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/marionette-cli/cmd"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

const panicLogFile = "panic.log"

var osExit = os.Exit

func main() {
	defer handlePanic()

	// Graceful shutdown on SIGINT/SIGTERM: the context cancels, the loop
	// returns with a partial transcript and the browser closes cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		observability.Sync()
		if errors.Is(err, context.Canceled) {
			osExit(0)
		}
		osExit(1)
	}
	observability.Sync()
}

// handlePanic writes the stack to a file so a crash leaves evidence even
// when stderr is lost.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		if err := os.WriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return
		}

		fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
		osExit(1)
	}
}
