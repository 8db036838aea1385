package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultListenAddr        = ":8080"
	defaultDBPath            = "hostrunner.db"
	defaultOperationTimeout  = 10 * time.Second
	defaultBridgeDialTimeout = 5 * time.Second
	defaultBridgeReconnect   = 2 * time.Second

	envListenAddr        = "HOSTRUNNER_LISTEN_ADDR"
	envDBPath            = "HOSTRUNNER_DB_PATH"
	envLogLevel          = "HOSTRUNNER_LOG_LEVEL"
	envLogFormat         = "HOSTRUNNER_LOG_FORMAT"
	envLogFile           = "HOSTRUNNER_LOG_FILE"
	envOperationTimeout  = "HOSTRUNNER_OPERATION_TIMEOUT_MS"
	envBridgeURL         = "HOSTRUNNER_BRIDGE_URL"
	envBridgeDialTimeout = "HOSTRUNNER_BRIDGE_DIAL_TIMEOUT_MS"
	envBridgeReconnect   = "HOSTRUNNER_BRIDGE_RECONNECT_MS"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Log file rotation limits.
const (
	logFileMaxSizeMB  = 50
	logFileMaxBackups = 5
	logFileMaxAgeDays = 14
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	LogFormat  string
	LogFile    string

	OperationTimeout time.Duration

	// BridgeURL is the host bridge websocket. Empty disables the bridge and
	// every submission is dropped as host-unreachable.
	BridgeURL         string
	BridgeDialTimeout time.Duration
	BridgeReconnect   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Invalid values fall back to the default.
func Load() Config {
	cfg := Config{
		ListenAddr:        defaultListenAddr,
		DBPath:            defaultDBPath,
		LogLevel:          slog.LevelInfo,
		LogFormat:         LogFormatJSON,
		OperationTimeout:  defaultOperationTimeout,
		BridgeDialTimeout: defaultBridgeDialTimeout,
		BridgeReconnect:   defaultBridgeReconnect,
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
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.LogFormat = parseLogFormat(v)
	}
	cfg.LogFile = os.Getenv(envLogFile)
	cfg.OperationTimeout = parseMillis(os.Getenv(envOperationTimeout), defaultOperationTimeout)
	cfg.BridgeURL = os.Getenv(envBridgeURL)
	cfg.BridgeDialTimeout = parseMillis(os.Getenv(envBridgeDialTimeout), defaultBridgeDialTimeout)
	cfg.BridgeReconnect = parseMillis(os.Getenv(envBridgeReconnect), defaultBridgeReconnect)

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

func parseLogFormat(s string) string {
	if strings.EqualFold(s, LogFormatText) {
		return LogFormatText
	}
	return LogFormatJSON
}

// parseMillis parses a positive millisecond count.
func parseMillis(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a human-readable console logger. Colors are only
// emitted when w is a terminal file.
func NewTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			noColor = false
		}
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05.000Z07:00",
		NoColor:    noColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	}))
}

// Logger builds the application logger. Output goes to stdout unless
// LogFile is set, in which case it goes to a size-rotated file. The returned
// closer releases the file and is safe to call when stdout is used.
func (c Config) Logger(stdout io.Writer) (*slog.Logger, io.Closer) {
	var out io.Writer = stdout
	var closer io.Closer = nopCloser{}
	if c.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
			Compress:   true,
		}
		out, closer = lj, lj
	}

	if c.LogFormat == LogFormatText {
		return NewTextLogger(out, c.LogLevel), closer
	}
	return NewLogger(out, c.LogLevel), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
