package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects log output. DEBUG/INFO/WARN go to out, ERROR/FATAL to
// errOut. A nil writer leaves the current destination unchanged.
func SetOutput(out, errOut io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// writeLog formats one line and routes it by severity.
func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)

	if len(fields) > 0 {
		b.WriteString(" |")
		for _, k := range sortedKeys(fields) {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	outMu.Lock()
	defer outMu.Unlock()
	if level >= ERROR {
		_, _ = io.WriteString(stderr, b.String())
		return
	}
	_, _ = io.WriteString(stdout, b.String())
}

// logf formats msg and writes it with the logger's persistent fields.
func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	l.logWithFields(level, formatted)
}

// GetTimestamp returns an RFC3339 timestamp, or LOG_TIMESTAMP when set.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
