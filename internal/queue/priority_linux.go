//go:build linux

package queue

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// backgroundNice is the niceness applied to workers running
// ThreadBackground tasks. Positive niceness lowers scheduling priority.
const backgroundNice = 19

var starvationPrevented atomic.Bool

// PreventStarvation disables thread-priority lowering for all subsequent
// tasks. On heavily loaded systems niced background threads may make no
// progress at all; latency-sensitive environments (and tests) use this to
// guarantee forward progress.
func PreventStarvation() {
	starvationPrevented.Store(true)
}

// runWithThreadPriority runs f, lowering the OS thread priority first when
// the task asks for background scheduling.
//
// Niceness is a per-thread property on Linux, so the goroutine is pinned to
// its thread for the duration and the original niceness restored afterwards.
// Failures are ignored: priority is a hint, not a correctness requirement.
func runWithThreadPriority(pri ThreadPriority, f func()) {
	if pri != ThreadBackground || starvationPrevented.Load() {
		f()
		return
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid := unix.Gettid()
	prev, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err == nil {
		_ = unix.Setpriority(unix.PRIO_PROCESS, tid, backgroundNice)
		defer func() { _ = unix.Setpriority(unix.PRIO_PROCESS, tid, prev) }()
	}

	f()
}
