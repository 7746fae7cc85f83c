package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"tg-appeals/internal/logger"
)

// GormLogger adapts gorm's logger.Interface onto the application logger.
type GormLogger struct {
	LogLevel                  gormlogger.LogLevel
	SlowThreshold             time.Duration
	SkipCallerLookup          bool
	IgnoreRecordNotFoundError bool
}

// NewGormLogger creates a gorm logger for the configured level name
func NewGormLogger(level string) gormlogger.Interface {
	var logLevel gormlogger.LogLevel

	switch strings.ToUpper(level) {
	case "SILENT":
		logLevel = gormlogger.Silent
	case "DEBUG", "INFO":
		logLevel = gormlogger.Info
	case "WARNING", "WARN":
		logLevel = gormlogger.Warn
	case "ERROR", "FATAL":
		logLevel = gormlogger.Error
	default:
		logLevel = gormlogger.Warn
	}

	return &GormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		logger.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		logger.Warningf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		logger.Errorf(msg, data...)
	}
}

// Trace logs executed SQL: errors, slow queries and, at Info, everything
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	ms := float64(elapsed.Nanoseconds()) / 1e6

	var source string
	if !l.SkipCallerLookup {
		source = " [" + utils.FileWithLineNum() + "]"
	}

	switch {
	case err != nil && l.LogLevel >= gormlogger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		logger.Errorf("[%.3fms]%s %s; error=%v", ms, source, sql, err)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= gormlogger.Warn:
		slowLog := fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold)
		logger.Warningf("[%.3fms]%s %s; %s, rows=%v", ms, source, sql, slowLog, rows)
	case l.LogLevel == gormlogger.Info:
		logger.Debugf("[%.3fms]%s %s; rows=%v", ms, source, sql, rows)
	}
}
