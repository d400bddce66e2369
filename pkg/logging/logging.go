// Package logging writes the run log: an append-only text file with one
// timestamped message per line. The file is never rotated or truncated
// here; it is meant to be read by humans, not parsed.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Logger appends timestamped lines to the run log. Safe for concurrent
// use; the subprocess forwarders write from separate goroutines.
type Logger struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File
	now  func() time.Time
}

// New returns a Logger writing to w. Used by tests and by Open.
func New(w io.Writer) *Logger {
	return &Logger{out: w, now: time.Now}
}

// Open opens (or creates) the run log at path in append mode. When echo
// is set, every line is also written to stdout so a terminal invocation
// shows progress live.
func Open(path string, echo bool) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}

	var out io.Writer = f
	if echo {
		out = io.MultiWriter(f, os.Stdout)
	}

	l := New(out)
	l.file = f
	return l, nil
}

// Line appends a single timestamped line: "[YYYY-MM-DD HH:MM:SS] <msg>".
func (l *Logger) Line(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", l.now().Format(timestampLayout), msg)
}

// Printf formats a message and appends it as a single line.
func (l *Logger) Printf(format string, args ...any) {
	l.Line(fmt.Sprintf(format, args...))
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
