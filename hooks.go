package syncra

import (
	"runtime/debug"
)

// callHook runs a user lifecycle callback. A panicking game callback must
// not take the replication tick down with it, so the call is fenced the
// same way dispatchers in the pack fence user code.
func (r *Replicator) callHook(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Printf("[syncra] panic in %s hook: %v\n%s", name, rec, debug.Stack())
		}
	}()
	fn()
}
