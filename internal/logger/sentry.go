package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"tg-appeals/internal/config"
)

// InitSentry configures the global sentry hub. It is a no-op without a DSN.
// The returned function flushes buffered events and should run on shutdown.
func InitSentry(cfg *config.Config, release string) (func(), error) {
	if cfg.Sentry.DSN == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     release,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}
