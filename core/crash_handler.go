package core

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"
)

// crashHook runs before the stack trace is printed, letting the host
// application restore its output surface (e.g. reset the terminal)
var crashHook atomic.Pointer[func()]

// SetCrashHook installs a cleanup function invoked once on crash
// Must be called before any Go goroutine is spawned
func SetCrashHook(fn func()) {
	crashHook.Store(&fn)
}

// HandleCrash is the unified panic handler that prints the stack trace and exits
func HandleCrash(r any) {
	if r == nil {
		return
	}

	if hook := crashHook.Load(); hook != nil {
		(*hook)()
	}

	// Force flush before writing the trace
	os.Stdout.Sync()
	os.Stderr.Sync()

	fmt.Fprintf(os.Stderr, "CRASH DETECTED: %v\n", r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())

	os.Stderr.Sync()

	os.Exit(1)
}

// Go runs a function in a new goroutine with panic recovery.
// Use this instead of the 'go' keyword so worker crashes surface a full
// trace instead of dying silently inside the pool.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				HandleCrash(r)
			}
		}()
		fn()
	}()
}
