// Package logging is the structured-logging seam shared by reactor, channel,
// pipeline and bootstrap.
//
// It follows the teacher event loop's logging.go: a package-level, swappable
// logger with a non-nil default (JSON lines to stderr at informational
// level), so that instantiating a Loop/Channel never requires a logger
// argument, but another can be installed process-wide via SetLogger. There
// is no per-component logger option; every package logs through Get. Unlike the teacher, which rolled its own Logger
// interface, this uses github.com/joeycumines/logiface directly, backed by
// github.com/joeycumines/stumpy's JSON event encoder — both are real
// dependencies already present in this source tree's lineage, so there is
// no reason to hand-roll a leveled-logging interface here.
package logging

import (
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type used throughout this module.
type Logger = logiface.Logger[*stumpy.Event]

var (
	mu      sync.RWMutex
	current *Logger = newDefault()
)

// newDefault builds a quiet, informational-level logger writing JSON lines
// to stderr. It is never nil, so components can log unconditionally.
func newDefault() *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(stumpy.L.LevelInformational()),
	)
}

// SetLogger installs the process-wide default logger. Passing nil restores
// the default (stderr, informational level).
func SetLogger(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = newDefault()
	}
	current = l
}

// Get returns the current process-wide logger.
func Get() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
