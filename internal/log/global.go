package log

import (
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger sets the process-wide default logger. The CLI sets it once
// after reading configuration; packages fall back to it when given no logger.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide default logger, creating one with
// DefaultConfig on first use.
func DefaultLogger() *Logger {
	loggerMu.RLock()
	logger := defaultLogger
	loggerMu.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = Default()
	}
	return defaultLogger
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return DefaultLogger()
}
