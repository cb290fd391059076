// Package logging provides structured logging for mergetrace.
//
// Initialize the logger once at startup and fetch named loggers per component:
//
//	logging.Initialize("info", map[string]string{"searchgraph": "debug"})
//	logger := logging.GetLogger("analyzer")
//	logger.Info("analyzing %s", path)
//
// Structured fields are attached either per call or persistently:
//
//	logger.InfoWithFields("file analyzed",
//	    logging.Field("path", path),
//	    logging.Field("nodes", nodes),
//	)
//	fileLogger := logger.WithField("path", path)
//
// WithContext attaches a context; when it carries an OpenTelemetry span the
// trace_id and span_id of that span are added to every line.
//
// Per-package levels accept exact names ("searchgraph") and wildcard patterns
// ("analyzer.*"). Loggers are immutable and safe for concurrent use.
//
// Set LOG_TIMESTAMP to pin the timestamp in tests.
package logging

import (
	"context"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *Logger
	initOnce     sync.Once
	// exitFunc is called by Fatal. Overridden in tests.
	exitFunc = os.Exit
)

// Initialize sets the default level and optional per-package level overrides.
// Unknown level names fall back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalLogger = &Logger{
		level: level,
		name:  "mergetrace",
	}

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}
	return nil
}

// GetLogger returns a logger with the specified name
func GetLogger(name string) *Logger {
	initOnce.Do(func() {
		if globalLogger == nil {
			_ = Initialize("info")
		}
	})
	return &Logger{
		level:  globalLogger.level,
		name:   name,
		fields: make(map[string]interface{}),
	}
}

// shouldLog checks the per-package override first, then the logger's level.
func (l *Logger) shouldLog(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.shouldLog(level)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(INFO, msg, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(WARN, msg, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// Fatal logs a fatal message and exits the program with code 1
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(FATAL, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs an error message followed by err.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.shouldLog(ERROR) {
		args = append(args, err)
		l.logf(ERROR, msg+" - %v", args...)
	}
}

// WithName returns a new logger with a custom name
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
}

// WithField adds a structured field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newLogger := &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
	newLogger.fields[key] = value
	return newLogger
}

// WithFields adds multiple structured fields to the logger
func (l *Logger) WithFields(fields ...LogField) *Logger {
	newLogger := &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
	for _, f := range fields {
		newLogger.fields[f.Key] = f.Value
	}
	return newLogger
}

// WithContext returns a logger that reports the trace and span IDs of the
// span active in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    ctx,
	}
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

// logWithFields merges context, persistent and call fields; later sources win.
func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	contextFields := extractContextFields(l.ctx)

	var merged map[string]interface{}
	if contextFields != nil || len(l.fields) > 0 || len(fields) > 0 {
		merged = make(map[string]interface{})
		for k, v := range contextFields {
			merged[k] = v
		}
		for k, v := range l.fields {
			merged[k] = v
		}
		for _, f := range fields {
			merged[f.Key] = f.Value
		}
	}

	l.writeLog(level, msg, merged)
}

// parseLevel converts a level name to a LogLevel.
func parseLevel(levelStr string) (LogLevel, error) {
	for lvl, name := range levelNames {
		if strings.EqualFold(levelStr, name) {
			return LogLevel(lvl), nil
		}
	}
	return -1, &invalidLevelError{level: levelStr}
}
