// Package shutdown holds the process-wide should_stop flag spec.md §4.4
// requires: a signal-driven atomic polled by long-running adapter callers,
// installed once by the application entrypoint and independent of any single
// bridge or adapter instance's own lifecycle flags.
package shutdown

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

var stop atomic.Bool

// ShouldStop reports whether SIGINT has been observed since the process
// started (or since the last ResetForTest call).
func ShouldStop() bool { return stop.Load() }

// Install registers a SIGINT handler that sets the should_stop flag. It
// never touches any adapter's mutexes, matching the isolation spec.md §4.4
// requires of signal handling. Safe to call more than once; each call adds
// its own signal.Notify registration.
func Install() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	go func() {
		<-ch
		stop.Store(true)
	}()
}

// ResetForTest clears the flag; only meant for use from _test.go files that
// exercise should_stop-polling loops in isolation.
func ResetForTest() { stop.Store(false) }
