// Package logbook is the process log shared by the scheduler, the detector
// and the agents. Domain events go to the audit trail, not here.
package logbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook writes timestamped, leveled lines to one writer.
// A nil *Logbook discards everything.
type Logbook struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	now    func() time.Time
	closer io.Closer
}

// New creates a logbook writing to out.
func New(out io.Writer) *Logbook {
	return &Logbook{out: out, now: time.Now}
}

// Discard returns a logbook that drops every entry.
func Discard() *Logbook {
	return New(io.Discard)
}

// Open creates a logbook that writes to stderr and appends to the file at path.
func Open(path string) (*Logbook, error) {
	if path == "" {
		return New(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logbook: open log file: %w", err)
	}
	lb := New(io.MultiWriter(os.Stderr, f))
	lb.closer = f
	return lb, nil
}

// Close releases the log file, if any.
func (l *Logbook) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// With returns a child logbook whose lines carry "[component]".
// Children share the parent's writer and lock.
func (l *Logbook) With(component string) *Logbook {
	if l == nil {
		return nil
	}
	return &Logbook{out: &lockedWriter{parent: l}, prefix: "[" + component + "] ", now: l.now}
}

// Append writes a single entry.
func (l *Logbook) Append(level Level, message string) {
	if l == nil || l.out == nil {
		return
	}
	line := fmt.Sprintf("%s %-5s %s%s\n",
		l.now().UTC().Format(time.RFC3339),
		string(level),
		l.prefix,
		strings.TrimSpace(message),
	)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

type lockedWriter struct {
	parent *Logbook
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.parent.mu.Lock()
	defer w.parent.mu.Unlock()
	return w.parent.out.Write(p)
}
