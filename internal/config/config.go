package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Config holds all agent configuration loaded from environment variables.
type Config struct {
	// ListenHost is the address the provisioning listener binds to.
	ListenHost string

	// ListenPort is the TCP port of the provisioning listener.
	ListenPort int

	// Interface is the wireless interface managed by the agent.
	Interface string

	// DefaultProfile is the profile name used by SET_WIFI requests.
	DefaultProfile string

	// ConnectTimeout bounds the post-activation link confirmation.
	ConnectTimeout time.Duration

	// PollInterval is the delay between link status checks.
	PollInterval time.Duration

	// CommandTimeout bounds each mutating nmcli command.
	CommandTimeout time.Duration

	// SettleDelay is slept between profile mutation steps.
	SettleDelay time.Duration

	// HTTPPort is the port of the read-only status API. Zero disables it.
	HTTPPort int

	// HTTPSecret, when set, is required in X-Agent-Secret on status requests.
	HTTPSecret string

	// ReportURL, when set, receives a JSON report after each session.
	ReportURL string

	// DataDir is the root directory for persistent agent data.
	DataDir string

	// LogDir is the directory for log files.
	LogDir string

	// Debug enables verbose logging and stdout log mirroring.
	Debug bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenHost:     "0.0.0.0",
		ListenPort:     12345,
		Interface:      "wlan0",
		DefaultProfile: "ListenerManagedWifi",
		ConnectTimeout: 45 * time.Second,
		PollInterval:   3 * time.Second,
		CommandTimeout: 20 * time.Second,
		SettleDelay:    time.Second,
		DataDir:        "/var/lib/wifibridge",
		LogDir:         "/var/log/wifibridge",
	}
}

// Load reads configuration from environment variables, applying defaults for
// anything not explicitly set. A .env file in the working directory is
// honored when present. Returns an error if a value is malformed.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("WIFIBRIDGE_LISTEN_HOST"); v != "" {
		cfg.ListenHost = v
	}

	if v := os.Getenv("WIFIBRIDGE_LISTEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("WIFIBRIDGE_LISTEN_PORT: invalid port %q", v)
		}
		cfg.ListenPort = port
	}

	if v := os.Getenv("WIFIBRIDGE_INTERFACE"); v != "" {
		cfg.Interface = v
	}

	if v := os.Getenv("WIFIBRIDGE_DEFAULT_PROFILE"); v != "" {
		cfg.DefaultProfile = v
	}

	var err error
	if cfg.ConnectTimeout, err = envDuration("WIFIBRIDGE_CONNECT_TIMEOUT", cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = envDuration("WIFIBRIDGE_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.CommandTimeout, err = envDuration("WIFIBRIDGE_COMMAND_TIMEOUT", cfg.CommandTimeout); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = envDuration("WIFIBRIDGE_SETTLE_DELAY", cfg.SettleDelay); err != nil {
		return nil, err
	}

	if v := os.Getenv("WIFIBRIDGE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("WIFIBRIDGE_HTTP_PORT: invalid port %q", v)
		}
		cfg.HTTPPort = port
	}

	cfg.HTTPSecret = os.Getenv("WIFIBRIDGE_HTTP_SECRET")
	cfg.ReportURL = os.Getenv("WIFIBRIDGE_REPORT_URL")

	if v := os.Getenv("WIFIBRIDGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("WIFIBRIDGE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}

	cfg.Debug = os.Getenv("WIFIBRIDGE_DEBUG") == "true"

	return cfg, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

// NewLogger creates a structured logger that writes JSON to a log file, and
// also to stdout when debug is enabled.
func NewLogger(cfg *Config, name string) (*slog.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(cfg.LogDir, name+".log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	level := slog.LevelInfo
	var out io.Writer = file
	if cfg.Debug {
		level = slog.LevelDebug
		out = io.MultiWriter(file, os.Stdout)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
