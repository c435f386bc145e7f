package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Run is the main CLI entry point. It parses args and dispatches to the
// appropriate subcommand, returning a process exit code.
func Run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		return runServe(ctx, nil)
	}

	switch args[0] {
	case "serve", "server":
		return runServe(ctx, args[1:])
	case "alias":
		return runAlias(ctx, args[1:])
	case "resolve":
		return runResolve(ctx, args[1:])
	case "version", "--version", "-v":
		printVersion()
		return 0
	case "-h", "--help", "help":
		printUsage()
		return 0
	}
	if strings.HasPrefix(args[0], "-") {
		return runServe(ctx, args)
	}
	fmt.Fprintln(os.Stderr, "unknown command:", args[0])
	printUsage()
	return 2
}
