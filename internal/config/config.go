package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "tickq.db"
	defaultTickInterval = 100 * time.Millisecond
	defaultTickBudget   = 20 * time.Millisecond

	envListenAddr   = "TICKQ_LISTEN_ADDR"
	envDBPath       = "TICKQ_DB_PATH"
	envLogLevel     = "TICKQ_LOG_LEVEL"
	envTickInterval = "TICKQ_TICK_INTERVAL"
	envTickBudgetMS = "TICKQ_TICK_BUDGET_MS"
	envConfigFile   = "TICKQ_CONFIG_FILE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// TickInterval is how often the simulated host runs a tick.
	TickInterval time.Duration
	// TickBudget is the drain budget passed to the process hook each tick.
	TickBudget time.Duration

	// ConfigFile is an optional YAML file with queue and drain settings.
	ConfigFile string
}

// Load reads configuration from environment variables with sensible defaults.
// Unparseable values fall back to the default.
func Load() Config {
	cfg := Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		TickInterval: defaultTickInterval,
		TickBudget:   defaultTickBudget,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envTickInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TickInterval = d
		}
	}
	if v := os.Getenv(envTickBudgetMS); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms >= 0 {
			cfg.TickBudget = time.Duration(ms) * time.Millisecond
		}
	}
	cfg.ConfigFile = os.Getenv(envConfigFile)

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
