// Package textlog provides the leveled, human-readable log stream a site
// response run emits alongside its numeric progress stream.
//
// It mirrors the three verbosity levels the source's TextLog class
// documented, backed by a structured zerolog writer instead of a bespoke
// string accumulator, so the same log can be read as a transcript or shipped
// as structured events.
package textlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level controls how much of the run is narrated.
type Level int

const (
	// Low prints only the input summary and the coarse progress of the
	// calculation (start/finish of each realization).
	Low Level = iota
	// Medium additionally prints the results of each (realization, motion)
	// run: converged/not-converged, iteration count, max error.
	Medium
	// High additionally prints the results of each iteration within a run.
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name, defaulting to Low on no match.
func ParseLevel(s string) Level {
	switch s {
	case "medium":
		return Medium
	case "high":
		return High
	default:
		return Low
	}
}

// Log is a leveled, concurrency-safe text log. The zero value is not usable;
// construct with New.
type Log struct {
	mu         sync.Mutex
	level      Level
	zl         zerolog.Logger
	transcript []string
}

// New builds a Log at the given level, writing structured events to w (use
// os.Stdout for console output, or io.Discard to keep only the transcript).
func New(level Level, w io.Writer) *Log {
	if w == nil {
		w = os.Stdout
	}
	return &Log{
		level: level,
		zl:    zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Level returns the current verbosity level.
func (l *Log) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel changes the verbosity level.
func (l *Log) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Append records text at Low if no level is more specific; use Logf for
// leveled messages. Kept for parity with the source's append(text).
func (l *Log) Append(text string) {
	l.Logf(Low, text)
}

// Logf emits a message if at least the given level is enabled, and always
// appends it to the in-memory transcript.
func (l *Log) Logf(at Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.transcript = append(l.transcript, msg)
	if l.level >= at {
		l.zl.Info().Msg(msg)
	}
}

// Transcript returns the full accumulated log text, regardless of level.
func (l *Log) Transcript() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.transcript))
	copy(out, l.transcript)
	return out
}

// Clear empties the transcript without changing the level.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transcript = l.transcript[:0]
}

// Reset resets the level to Low and clears the transcript, matching the
// source's reset() semantics.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = Low
	l.transcript = l.transcript[:0]
}
