package handler

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"tg-appeals/internal/logger"
)

// Processing statistics
var (
	totalUpdatesProcessed int64
	totalSubmissions      int64
	totalAdminCommands    int64
	totalErrors           int64
	totalPanics           int64
	totalNotifyFailures   int64
	startTime             = time.Now()
)

func incrementCounter(counter *int64) {
	atomic.AddInt64(counter, 1)
}

// GetProcessingStats returns counters and runtime figures for the debug page
func GetProcessingStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	return map[string]interface{}{
		"uptime_seconds":        int64(uptime.Seconds()),
		"total_updates":         atomic.LoadInt64(&totalUpdatesProcessed),
		"total_submissions":     atomic.LoadInt64(&totalSubmissions),
		"total_admin_commands":  atomic.LoadInt64(&totalAdminCommands),
		"total_errors":          atomic.LoadInt64(&totalErrors),
		"total_panics":          atomic.LoadInt64(&totalPanics),
		"total_notify_failures": atomic.LoadInt64(&totalNotifyFailures),
		"active_handlers":       GetActiveHandlersCount(),
		"max_concurrent":        MaxConcurrent(),
		"memory_usage_mb":       bToMb(m.Alloc),
		"sys_memory_mb":         bToMb(m.Sys),
		"gc_runs":               m.NumGC,
		"goroutines":            runtime.NumGoroutine(),
	}
}

// LogProcessingStats logs the statistics every interval until stop is closed
func LogProcessingStats(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		stats := GetProcessingStats()
		logger.Infof("Processing stats: %+v", stats)

		maxConcurrent := stats["max_concurrent"].(int)
		if active := stats["active_handlers"].(int64); maxConcurrent > 0 && active > int64(maxConcurrent*8/10) {
			logger.Warningf("High number of active handlers: %d/%d", active, maxConcurrent)
		}

		totalUpdates := stats["total_updates"].(int64)
		errorCount := stats["total_errors"].(int64)
		if totalUpdates > 0 && float64(errorCount)/float64(totalUpdates) > 0.1 {
			logger.Warningf("High error rate: %.2f%% (%d errors out of %d updates)",
				float64(errorCount)/float64(totalUpdates)*100, errorCount, totalUpdates)
		}
	}
}

// StartStatusMonitoring starts periodic stats logging
func StartStatusMonitoring(stop <-chan struct{}) {
	go LogProcessingStats(5*time.Minute, stop)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// GetDetailedStatus renders the statistics as plain text
func GetDetailedStatus() string {
	stats := GetProcessingStats()
	return fmt.Sprintf(`
=== TG-Appeals Processing Status ===
Uptime: %d seconds
Updates Processed: %d
Appeal Submissions: %d
Admin Commands: %d
Errors: %d
Recovered Panics: %d
Failed Notifications: %d
Active Handlers: %d/%d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
====================================`,
		stats["uptime_seconds"],
		stats["total_updates"],
		stats["total_submissions"],
		stats["total_admin_commands"],
		stats["total_errors"],
		stats["total_panics"],
		stats["total_notify_failures"],
		stats["active_handlers"],
		stats["max_concurrent"],
		stats["memory_usage_mb"],
		stats["sys_memory_mb"],
		stats["gc_runs"],
		stats["goroutines"],
	)
}
