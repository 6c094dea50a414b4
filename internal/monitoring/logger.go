package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc = func(format string, v ...any)

var current atomic.Pointer[logFunc]

func init() {
	f := logFunc(log.Printf)
	current.Store(&f)
}

// Logf writes a diagnostic line through the installed logger, log.Printf
// unless SetLogger replaced it. Safe to call from worker goroutines.
func Logf(format string, v ...any) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		f = func(string, ...any) {}
	}
	current.Store(&f)
}

// Prefixed returns a logger that prepends prefix and a space to every line
// and writes through Logf.
func Prefixed(prefix string) func(format string, v ...any) {
	return func(format string, v ...any) {
		Logf(prefix+" "+format, v...)
	}
}
