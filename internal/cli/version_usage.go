package cli

import (
	"fmt"
	"os/exec"

	"github.com/koltyakov/wsedge/internal/versionutil"
)

func printUsage() {
	fmt.Println(`wsedge - WebSocket edge proxy

Accepts tunnel sessions over WebSocket and relays them to TCP destinations
encoded in the request path (/host-port) or looked up by 2-character alias.

Usage:
  wsedge                                 Start the edge server (same as serve)
  wsedge serve [flags]                   Start the edge server
  wsedge alias list                      List aliases in the sqlite table
  wsedge alias set CODE HOST:PORT...     Create or replace an alias
  wsedge alias delete CODE               Remove an alias
  wsedge alias import FILE|-|URL         Import a JSON alias document
  wsedge resolve TOKEN                   Print the endpoint a path token resolves to
  wsedge version                         Print version
  wsedge help                            Show this help

Environment Variables:
  WSEDGE_UUID             Tunnel credential (required)
  WSEDGE_LISTEN           Listen address (default: :8080)
  WSEDGE_MAIN_PAGE_URL    Landing page document served on /
  WSEDGE_SUB_PAGE_URL     Subscription page document served on /sub
  WSEDGE_DIRECTORY_URL    Alias directory: http(s)://, redis://, sqlite://path
  WSEDGE_DB_PATH          SQLite alias database path (default: ./wsedge.db)
  WSEDGE_PATH_PREFIX      Extra path prefix accepted before tokens
  WSEDGE_UPSTREAM_MODE    route|handshake (default: route)
  WSEDGE_UPSTREAM_PROXY   Optional socks5:// proxy for outbound dials
  WSEDGE_DEBUG_LISTEN     Optional listener for /metrics, /healthz and pprof
  WSEDGE_LOG_LEVEL        Log level: debug|info|warn|error (default: info)
  WSEDGE_LOG_FORMAT       Log format: text|json (default: text)

Values from ./.env are loaded for WSEDGE_* keys that are not already set.`)
}

// Version is set at build time via -ldflags.
var Version = versionutil.Dev

func init() {
	Version = versionutil.Resolve(Version, func() (string, error) {
		out, err := exec.Command("git", "describe", "--tags", "--always").Output()
		return string(out), err
	})
}

func printVersion() {
	fmt.Println("wsedge", Version)
}
