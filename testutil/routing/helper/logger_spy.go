package helper

import (
	"context"
	"sync"
)

// SpyLogEntry represents one captured log call.
type SpyLogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// LoggerSpy captures log calls for testing. It implements both the plain
// and the contextual logger interfaces of the routing package.
type LoggerSpy struct {
	entries []SpyLogEntry
	mu      sync.Mutex
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{entries: make([]SpyLogEntry, 0)}
}

// Debug captures a debug-level log call.
func (s *LoggerSpy) Debug(msg string, args ...any) { s.record("debug", msg, args) }

// Info captures an info-level log call.
func (s *LoggerSpy) Info(msg string, args ...any) { s.record("info", msg, args) }

// Warn captures a warn-level log call.
func (s *LoggerSpy) Warn(msg string, args ...any) { s.record("warn", msg, args) }

// Error captures an error-level log call.
func (s *LoggerSpy) Error(msg string, args ...any) { s.record("error", msg, args) }

// DebugContext captures a debug-level contextual log call.
func (s *LoggerSpy) DebugContext(_ context.Context, msg string, args ...any) {
	s.record("debug", msg, args)
}

// InfoContext captures an info-level contextual log call.
func (s *LoggerSpy) InfoContext(_ context.Context, msg string, args ...any) {
	s.record("info", msg, args)
}

// WarnContext captures a warn-level contextual log call.
func (s *LoggerSpy) WarnContext(_ context.Context, msg string, args ...any) {
	s.record("warn", msg, args)
}

// ErrorContext captures an error-level contextual log call.
func (s *LoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) {
	s.record("error", msg, args)
}

func (s *LoggerSpy) record(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	argsCopy := make([]any, len(args))
	copy(argsCopy, args)

	s.entries = append(s.entries, SpyLogEntry{Level: level, Msg: msg, Args: argsCopy})
}

// Entries returns a copy of all captured log calls.
func (s *LoggerSpy) Entries() []SpyLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]SpyLogEntry, len(s.entries))
	copy(entries, s.entries)

	return entries
}

// EntriesWithMsg returns all captured calls with the given message.
func (s *LoggerSpy) EntriesWithMsg(msg string) []SpyLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	matching := make([]SpyLogEntry, 0)
	for _, entry := range s.entries {
		if entry.Msg == msg {
			matching = append(matching, entry)
		}
	}

	return matching
}

// Reset clears all captured log calls.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}
