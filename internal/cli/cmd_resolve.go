package cli

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/koltyakov/wsedge/internal/config"
	"github.com/koltyakov/wsedge/internal/directory"
	"github.com/koltyakov/wsedge/internal/domain"
	ilog "github.com/koltyakov/wsedge/internal/log"
	"github.com/koltyakov/wsedge/internal/target"
)

// runResolve prints the endpoint a routing token resolves to, using the
// same directory and fallback rules as the server.
func runResolve(ctx context.Context, args []string) int {
	loadEnvFromDotEnv(".env")

	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	dirURL := envOr("WSEDGE_DIRECTORY_URL", config.DefaultDirectoryURL)
	dbPath := config.DefaultDBPath()
	host := "localhost"
	port := uint(domain.DefaultPort)
	verbose := false
	fs.StringVar(&dirURL, "directory", dirURL, "Alias directory: http(s)://, redis://, or sqlite://path")
	fs.StringVar(&dbPath, "db", dbPath, "SQLite alias database path (used by sqlite:// directory)")
	fs.StringVar(&host, "host", host, "Request host used as the fallback destination")
	fs.UintVar(&port, "default-port", port, "Port of the fallback destination")
	fs.BoolVar(&verbose, "v", verbose, "Log directory lookups to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wsedge resolve [flags] TOKEN")
		return 2
	}
	if port == 0 || port > 65535 {
		fmt.Fprintln(os.Stderr, "resolve error: default port must be between 1 and 65535")
		return 2
	}

	dir, closer, err := directory.Open(dirURL, dbPath, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		fmt.Fprintln(os.Stderr, "directory error:", err)
		return 1
	}
	defer func() { _ = closer.Close() }()

	level := "error"
	if verbose {
		level = "debug"
	}
	resolver := target.New(dir, ilog.NewWithWriter(os.Stderr, level, "text"))
	fallback := domain.Endpoint{Host: host, Port: uint16(port)}
	fmt.Println(resolver.Resolve(ctx, fs.Arg(0), fallback).String())
	return 0
}
