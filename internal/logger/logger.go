package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotse/slug"
	sentryslog "github.com/getsentry/sentry-go/slog"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"tg-appeals/internal/config"
)

const filePrefix = "tg-appeals"

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// ParseLevel maps the configured level names onto slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup configures logging to stdout and a rotating log file, plus Sentry
// when a DSN is configured. The returned closer flushes the log file.
func Setup(cfg *config.Config) (io.Closer, error) {
	logFilePath := cfg.Logger.File
	if logFilePath == "" {
		logFilePath = createLogFilePath(cfg.Logger.Directory, filePrefix)
	}

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	level := ParseLevel(cfg.Logger.Level)
	rotatingLogger := createRotatingLogger(logFilePath, cfg)

	handlers := []slog.Handler{
		slug.NewHandler(slug.HandlerOptions{
			HandlerOptions: slog.HandlerOptions{Level: level},
		}, os.Stdout),
		slog.NewTextHandler(rotatingLogger, &slog.HandlerOptions{Level: level, AddSource: true}),
	}

	if cfg.Sentry.DSN != "" {
		handlers = append(handlers, sentryslog.Option{AddSource: true}.NewSentryHandler(context.Background()))
	}

	Init(slog.New(slogmulti.Fanout(handlers...)))

	// startup code still logs through the standard logger
	log.SetOutput(io.MultiWriter(os.Stdout, rotatingLogger))
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	Infof("Logging initialized: writing to %s", logFilePath)
	return rotatingLogger, nil
}
