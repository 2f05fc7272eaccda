// Package calog provides the structured logger interface used across
// the CA core. It mirrors the minimal surface the teacher family's
// blog.Logger exposes (Infof/Debugf/AuditErrf), so call sites read the
// same way whether backed by a real process logger or UseMock in
// tests.
package calog

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger is the interface every component in this module logs through.
// AuditErr/AuditErrf are for events an operator must be able to find in
// an audit trail (duplicate rejections, partial-state refusals,
// crypto failures); Info/Infof are routine operational events;
// Debug/Debugf are verbose, autosign-script-stdout-class detail.
type Logger interface {
	Info(msg string)
	Infof(format string, args ...interface{})
	Debug(msg string)
	Debugf(format string, args ...interface{})
	AuditErr(msg string)
	AuditErrf(format string, args ...interface{})
}

// stdLogger is the production Logger, backed by the standard library
// log package writing to stderr with a level prefix.
type stdLogger struct {
	mu  sync.Mutex
	out *log.Logger
}

// New returns a Logger that writes level-prefixed lines to stderr.
func New() Logger {
	return &stdLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *stdLogger) line(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("%s: %s", level, msg)
}

func (l *stdLogger) Info(msg string)  { l.line("INFO", msg) }
func (l *stdLogger) Debug(msg string) { l.line("DEBUG", msg) }

func (l *stdLogger) AuditErr(msg string) { l.line("AUDIT-ERR", msg) }

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *stdLogger) AuditErrf(format string, args ...interface{}) {
	l.AuditErr(fmt.Sprintf(format, args...))
}

// Mock is an in-memory Logger for tests. It records every line with
// its level prefix, matching the shape of calls a real Logger would
// receive, so tests can assert on log content the way
// web/context_test.go asserts on blog's mock in the teacher family.
type Mock struct {
	mu    sync.Mutex
	lines []string
}

// UseMock returns a fresh in-memory Logger.
func UseMock() *Mock {
	return &Mock{}
}

func (m *Mock) record(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, fmt.Sprintf("%s: %s", level, msg))
}

func (m *Mock) Info(msg string)      { m.record("INFO", msg) }
func (m *Mock) Debug(msg string)     { m.record("DEBUG", msg) }
func (m *Mock) AuditErr(msg string)  { m.record("AUDIT-ERR", msg) }
func (m *Mock) Infof(format string, args ...interface{}) {
	m.Info(fmt.Sprintf(format, args...))
}
func (m *Mock) Debugf(format string, args ...interface{}) {
	m.Debug(fmt.Sprintf(format, args...))
}
func (m *Mock) AuditErrf(format string, args ...interface{}) {
	m.AuditErr(fmt.Sprintf(format, args...))
}

// GetAll returns every recorded line, in order.
func (m *Mock) GetAll() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}
