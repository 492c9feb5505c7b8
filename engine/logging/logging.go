// Package logging defines the structured logger contract injected throughout
// the engine. The engine never logs through a package-level default; callers
// bind whatever implementation their process uses.
package logging

import (
	"fmt"
	"log"
	"strings"
)

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Bind(keysAndValues ...any) Logger
}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Bind(...any) Logger   { return nopLogger{} }

// Std returns a logger writing key=value lines through the standard library
// logger. Suitable for the CLI; services plug in their own implementation.
func Std() Logger { return &stdLogger{} }

type stdLogger struct {
	bound []any
}

func (l *stdLogger) Info(msg string, kv ...any)  { l.emit("INFO", msg, kv) }
func (l *stdLogger) Debug(msg string, kv ...any) { l.emit("DEBUG", msg, kv) }
func (l *stdLogger) Warn(msg string, kv ...any)  { l.emit("WARN", msg, kv) }
func (l *stdLogger) Error(msg string, kv ...any) { l.emit("ERROR", msg, kv) }

func (l *stdLogger) Bind(kv ...any) Logger {
	merged := make([]any, 0, len(l.bound)+len(kv))
	merged = append(merged, l.bound...)
	merged = append(merged, kv...)
	return &stdLogger{bound: merged}
}

func (l *stdLogger) emit(level, msg string, kv []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	all := append(append([]any{}, l.bound...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	log.Print(b.String())
}
