// File: cmd/chatpilot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/chatpilot/cmd"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables swapped out in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

// main is the entry point of the application.
func main() {
	defer handlePanic(os.Stderr)

	// Interrupts cancel the running command; sessions still sign out on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(run(ctx, os.Args[1:]))
}

// run executes the command line and maps the outcome to an exit status.
// Without arguments it starts the interactive chat.
func run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		args = []string{"chat"}
	}
	if err := execute(ctx, args); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		return 1
	}
	return 0
}

// handlePanic records a crash to panic.log and exits non-zero.
func handlePanic(stderr io.Writer) {
	r := recover()
	if r == nil {
		return
	}

	// Ensure logs are flushed before proceeding.
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}

	fmt.Fprintf(stderr, "chatpilot crashed. Details logged to %s\n", panicLogFile)
	osExit(1)
}
