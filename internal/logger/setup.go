package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"bbsgate/internal/config"
)

var (
	filesMu sync.Mutex
	files   []*os.File
)

// Setup builds the process logger from the configured sinks and installs it
// as the slog default. Log files opened by a previous call are closed, so it
// is safe to call again on config reload.
func Setup(configs []config.LoggerConfig, quiet bool) *slog.Logger {
	closeFiles()

	if quiet {
		return slog.New(slog.DiscardHandler)
	}

	var handlers []slog.Handler
	for _, cfg := range configs {
		if h := stdoutHandler(cfg, os.Stdout); h != nil {
			handlers = append(handlers, h)
		}
		if h := fileHandler(cfg); h != nil {
			handlers = append(handlers, h)
		}
	}

	var logger *slog.Logger
	switch len(handlers) {
	case 0:
		// Fallback if no loggers configured
		logger = slog.New(tint.NewHandler(os.Stdout, nil))
	case 1:
		logger = slog.New(handlers[0])
	default:
		logger = slog.New(NewFanout(handlers...))
	}

	slog.SetDefault(logger)
	return logger
}

func stdoutHandler(cfg config.LoggerConfig, out *os.File) slog.Handler {
	if !cfg.Stdout {
		return nil
	}
	return newHandler(cfg, out, !isatty.IsTerminal(out.Fd()))
}

func fileHandler(cfg config.LoggerConfig) slog.Handler {
	if cfg.File == "" {
		return nil
	}

	dir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Failed to create log directory %s: %v", dir, err)
		return nil
	}

	file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("Failed to open log file %s: %v", cfg.File, err)
		return nil
	}

	filesMu.Lock()
	files = append(files, file)
	filesMu.Unlock()

	return newHandler(cfg, file, true)
}

func newHandler(cfg config.LoggerConfig, w io.Writer, noColor bool) slog.Handler {
	timeFormat := time.TimeOnly
	if cfg.TimeFormat != "" {
		timeFormat = cfg.TimeFormat
	}

	return tint.NewHandler(w, &tint.Options{
		NoColor:    noColor,
		Level:      ParseLevel(cfg.Level),
		AddSource:  cfg.Source,
		TimeFormat: timeFormat,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if cfg.HideTime && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
}

func closeFiles() {
	filesMu.Lock()
	defer filesMu.Unlock()
	for _, f := range files {
		_ = f.Close()
	}
	files = nil
}

// ParseLevel maps a config level name to a slog level. Unknown names are
// treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
