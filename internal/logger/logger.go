// Package logger prefixes standard log output with the component that
// produced it ("session: ...", "backend: ...").
package logger

import (
	"fmt"
	"log"
	"sync/atomic"
)

var quiet atomic.Bool

// SetQuiet suppresses Info output. Warnings and errors are always printed.
func SetQuiet(q bool) { quiet.Store(q) }

// Logger writes lines tagged with a component name.
type Logger struct {
	component string
}

// New returns a logger for the named component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Infof(format string, args ...any) {
	if quiet.Load() {
		return
	}
	l.output("", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.output("WARNING: ", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.output("ERROR: ", format, args...)
}

func (l *Logger) output(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_ = log.Output(3, fmt.Sprintf("%s: %s%s", l.component, level, msg))
}
