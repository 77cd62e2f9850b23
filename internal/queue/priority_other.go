//go:build !linux

package queue

import "sync/atomic"

var starvationPrevented atomic.Bool

// PreventStarvation disables thread-priority lowering for all subsequent
// tasks. Thread priorities are not adjusted on this platform, so this only
// keeps the API uniform.
func PreventStarvation() {
	starvationPrevented.Store(true)
}

// runWithThreadPriority runs f. Thread-priority lowering is unsupported on
// this platform.
func runWithThreadPriority(_ ThreadPriority, f func()) {
	f()
}
