package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upstream modes select which destination a session dials.
const (
	UpstreamModeRoute     = "route"
	UpstreamModeHandshake = "handshake"
)

type ServerConfig struct {
	Listen              string
	Credential          uuid.UUID
	LandingPageURL      string
	SubscriptionPageURL string
	DirectoryURL        string
	DBPath              string
	PathPrefix          string
	InfoURL             string
	DefaultPort         uint16
	UpstreamMode        string
	UpstreamProxy       string
	DialTimeout         time.Duration
	FetchTimeout        time.Duration
	DebugListen         string
	LogLevel            string
	LogFormat           string
	EarlyData           bool
}

// DefaultDirectoryURL is the public alias document used when no directory is configured.
const DefaultDirectoryURL = "https://raw.githubusercontent.com/FoolVPN-ID/Nautica/refs/heads/main/kvProxyList.json"

const defaultServerListen = ":8080"
const defaultDBPath = "./wsedge.db"
const defaultInfoURL = "https://github.com/koltyakov/wsedge"
const defaultFetchTimeout = 10 * time.Second

// DefaultDBPath returns the sqlite alias database path from the environment
// or the built-in default.
func DefaultDBPath() string {
	return envOrDefault("WSEDGE_DB_PATH", defaultDBPath)
}

func ParseServerFlags(args []string) (ServerConfig, error) {
	cfg := ServerConfig{
		Listen:              envOrDefault("WSEDGE_LISTEN", defaultServerListen),
		LandingPageURL:      envOrDefault("WSEDGE_MAIN_PAGE_URL", ""),
		SubscriptionPageURL: envOrDefault("WSEDGE_SUB_PAGE_URL", ""),
		DirectoryURL:        envOrDefault("WSEDGE_DIRECTORY_URL", DefaultDirectoryURL),
		DBPath:              DefaultDBPath(),
		PathPrefix:          envOrDefault("WSEDGE_PATH_PREFIX", ""),
		InfoURL:             envOrDefault("WSEDGE_INFO_URL", defaultInfoURL),
		UpstreamMode:        envOrDefault("WSEDGE_UPSTREAM_MODE", UpstreamModeRoute),
		UpstreamProxy:       envOrDefault("WSEDGE_UPSTREAM_PROXY", ""),
		DialTimeout:         envDurationOrDefault("WSEDGE_DIAL_TIMEOUT", 0),
		FetchTimeout:        envDurationOrDefault("WSEDGE_FETCH_TIMEOUT", defaultFetchTimeout),
		DebugListen:         envOrDefault("WSEDGE_DEBUG_LISTEN", ""),
		LogLevel:            envOrDefault("WSEDGE_LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("WSEDGE_LOG_FORMAT", "text"),
		EarlyData:           envBoolOrDefault("WSEDGE_EARLY_DATA", true),
	}
	credential := envOrDefault("WSEDGE_UUID", "")
	defaultPort := envIntOrDefault("WSEDGE_DEFAULT_PORT", int(defaultPortValue))

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	fs.StringVar(&credential, "uuid", credential, "Tunnel credential (UUID)")
	fs.StringVar(&cfg.LandingPageURL, "main-page-url", cfg.LandingPageURL, "Landing page document URL served on /")
	fs.StringVar(&cfg.SubscriptionPageURL, "sub-page-url", cfg.SubscriptionPageURL, "Subscription page document URL served on /sub")
	fs.StringVar(&cfg.DirectoryURL, "directory", cfg.DirectoryURL, "Alias directory: http(s)://, redis://, or sqlite://path")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite alias database path (used by sqlite:// directory)")
	fs.StringVar(&cfg.PathPrefix, "path-prefix", cfg.PathPrefix, "Extra path prefix accepted in front of routing tokens")
	fs.StringVar(&cfg.InfoURL, "info-url", cfg.InfoURL, "URL shown to plain browser visits on tunnel paths")
	fs.IntVar(&defaultPort, "default-port", defaultPort, "Port of the fallback destination")
	fs.StringVar(&cfg.UpstreamMode, "upstream", cfg.UpstreamMode, "Upstream mode: route|handshake")
	fs.StringVar(&cfg.UpstreamProxy, "upstream-proxy", cfg.UpstreamProxy, "Optional SOCKS5 proxy URL for outbound connections")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Outbound dial timeout (0 disables)")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for directory and page fetches")
	fs.StringVar(&cfg.DebugListen, "debug-listen", cfg.DebugListen, "Optional listen address for /metrics, /healthz and pprof")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text|json")
	fs.BoolVar(&cfg.EarlyData, "early-data", cfg.EarlyData, "Accept 0-RTT data in Sec-WebSocket-Protocol")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return cfg, errors.New("missing --uuid or WSEDGE_UUID")
	}
	id, err := uuid.Parse(credential)
	if err != nil {
		return cfg, fmt.Errorf("invalid credential: %w", err)
	}
	cfg.Credential = id

	if defaultPort <= 0 || defaultPort > 65535 {
		return cfg, errors.New("default port must be between 1 and 65535")
	}
	cfg.DefaultPort = uint16(defaultPort)

	cfg.UpstreamMode = strings.ToLower(strings.TrimSpace(cfg.UpstreamMode))
	if cfg.UpstreamMode == "" {
		cfg.UpstreamMode = UpstreamModeRoute
	}
	switch cfg.UpstreamMode {
	case UpstreamModeRoute, UpstreamModeHandshake:
	default:
		return cfg, errors.New("upstream mode must be one of: route, handshake")
	}

	cfg.PathPrefix = normalizePathPrefix(cfg.PathPrefix)
	for name, raw := range map[string]string{
		"main page url":  cfg.LandingPageURL,
		"sub page url":   cfg.SubscriptionPageURL,
		"upstream proxy": cfg.UpstreamProxy,
	} {
		if err := validateOptionalURL(raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", name, err)
		}
	}
	if strings.TrimSpace(cfg.DirectoryURL) == "" {
		return cfg, errors.New("directory url must not be empty")
	}
	if cfg.DialTimeout < 0 {
		return cfg, errors.New("dial timeout must be >= 0")
	}
	if cfg.FetchTimeout <= 0 {
		return cfg, errors.New("fetch timeout must be > 0")
	}

	return cfg, nil
}

const defaultPortValue = 443

func validateOptionalURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("expected absolute url, got %q", raw)
	}
	return nil
}

func normalizePathPrefix(v string) string {
	v = strings.Trim(strings.TrimSpace(v), "/")
	if v == "" {
		return ""
	}
	return "/" + v
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBoolOrDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
