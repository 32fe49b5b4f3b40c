package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown sets the drain flag. Set on SIGTERM/SIGINT and when the
// degraded recovery schedule is exhausted; /health reports shutting-down
// with a 503 while it holds.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should not take new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
