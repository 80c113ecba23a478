// Package eventlog is the append-only terminal shown under the editor.
// Every state-changing operation appends one human-readable line.
package eventlog

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Banner is the first line of a fresh log, and the only line after Clear.
const Banner = "> Initializing AI Compiler..."

// Log is an insertion-ordered sequence of lines. Lines are never edited or
// removed; Clear replaces the whole sequence with the banner.
type Log struct {
	mu     sync.RWMutex
	lines  []string
	mirror *zap.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithMirror copies every appended line to a diagnostics logger at debug level.
func WithMirror(l *zap.Logger) Option {
	return func(lg *Log) { lg.mirror = l }
}

// New returns a log holding only the banner.
func New(opts ...Option) *Log {
	l := &Log{lines: []string{Banner}, mirror: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append adds a line at the end.
func (l *Log) Append(msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, msg)
	n := len(l.lines)
	l.mu.Unlock()
	l.mirror.Debug("terminal", zap.Int("seq", n-1), zap.String("line", msg))
}

// Appendf formats and appends a line.
func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Len returns the number of lines.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}

// Lines returns a copy of all lines.
func (l *Log) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.lines)
}

// Since returns the lines appended at or after index i.
func (l *Log) Since(i int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(l.lines) {
		return nil
	}
	return slices.Clone(l.lines[i:])
}

// Tail returns the last n lines.
func (l *Log) Tail(n int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > len(l.lines) {
		n = len(l.lines)
	}
	if n <= 0 {
		return nil
	}
	return slices.Clone(l.lines[len(l.lines)-n:])
}

// Last returns the most recent line.
func (l *Log) Last() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lines[len(l.lines)-1]
}

// Clear replaces every line with a fresh banner.
func (l *Log) Clear() {
	l.mu.Lock()
	l.lines = []string{Banner}
	l.mu.Unlock()
	l.mirror.Debug("terminal cleared")
}
