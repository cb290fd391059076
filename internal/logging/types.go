package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
	// FATAL level for fatal messages
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if l < DEBUG || l > FATAL {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

type invalidLevelError struct {
	level string
}

func (e *invalidLevelError) Error() string {
	return fmt.Sprintf("invalid level: %s (must be DEBUG, INFO, WARN, ERROR, or FATAL)", e.level)
}

// ValidateLevel returns an error when level is not a known level name.
func ValidateLevel(level string) error {
	_, err := parseLevel(level)
	return err
}

// LogField represents a structured logging field
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a structured logging field
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// Logger provides structured logging throughout the application
type Logger struct {
	level  LogLevel
	name   string
	fields map[string]interface{}
	ctx    context.Context
}

// packageLogLevels holds per-package overrides keyed by name or "prefix.*".
var (
	packageLogLevels = make(map[string]LogLevel)
	packageLogMutex  sync.RWMutex
)

// SetPackageLogLevels replaces the per-package overrides.
func SetPackageLogLevels(levels map[string]string) error {
	if levels == nil {
		return nil
	}

	parsed := make(map[string]LogLevel, len(levels))
	for pkg, levelStr := range levels {
		level, err := parseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
		parsed[pkg] = level
	}

	packageLogMutex.Lock()
	packageLogLevels = parsed
	packageLogMutex.Unlock()
	return nil
}

// GetPackageLogLevel returns the override for packageName, or -1 when none
// applies. Exact matches win over wildcards; longer wildcards win over shorter.
func GetPackageLogLevel(packageName string) LogLevel {
	packageLogMutex.RLock()
	defer packageLogMutex.RUnlock()

	if level, exists := packageLogLevels[packageName]; exists {
		return level
	}

	var patterns []string
	for pattern := range packageLogLevels {
		if matchesPattern(packageName, pattern) {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		return LogLevel(-1)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return len(patterns[i]) > len(patterns[j])
	})
	return packageLogLevels[patterns[0]]
}

// matchesPattern reports whether packageName matches pattern.
//
//	matchesPattern("analyzer.cache", "analyzer.*") -> true
//	matchesPattern("searchgraph", "analyzer.*")    -> false
func matchesPattern(packageName, pattern string) bool {
	if packageName == pattern {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(packageName, prefix+".")
	}
	return false
}
