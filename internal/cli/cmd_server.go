package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/koltyakov/wsedge/internal/config"
	"github.com/koltyakov/wsedge/internal/debughttp"
	"github.com/koltyakov/wsedge/internal/directory"
	ilog "github.com/koltyakov/wsedge/internal/log"
	"github.com/koltyakov/wsedge/internal/server"
	"github.com/koltyakov/wsedge/internal/target"
	"github.com/koltyakov/wsedge/internal/upstream"
)

func runServe(ctx context.Context, args []string) int {
	loadEnvFromDotEnv(".env")

	cfg, err := config.ParseServerFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "server config error:", err)
		return 2
	}
	logger := ilog.New(cfg.LogLevel, cfg.LogFormat)

	dir, closer, err := directory.Open(cfg.DirectoryURL, cfg.DBPath, &http.Client{Timeout: cfg.FetchTimeout})
	if err != nil {
		fmt.Fprintln(os.Stderr, "directory error:", err)
		return 1
	}
	defer func() { _ = closer.Close() }()

	dialer, err := upstream.New(upstream.Options{
		Timeout:  cfg.DialTimeout,
		ProxyURL: cfg.UpstreamProxy,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "server config error:", err)
		return 2
	}

	if err := debughttp.StartServer(ctx, cfg.DebugListen, logger); err != nil {
		fmt.Fprintln(os.Stderr, "debug listener error:", err)
		return 1
	}

	logger.Info("wsedge starting",
		"version", Version,
		"listen", cfg.Listen,
		"upstream_mode", cfg.UpstreamMode,
		"upstream_via", dialer.Via(),
		"directory", dir.Name(),
	)

	s := server.New(cfg, target.New(dir, logger), dialer, logger)
	if err := s.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		return 1
	}
	return 0
}
