package reconcile

import "sync/atomic"

// Gate marks a reconciliation pass as in flight. The scheduler uses it to
// run one pass at a time and the observer uses it to ignore visibility
// changes caused by the reconciler's own commands.
type Gate struct {
	active atomic.Bool
}

// Start claims the gate. It returns false when a pass is already running.
func (g *Gate) Start() bool {
	return g.active.CompareAndSwap(false, true)
}

// Finish releases the gate.
func (g *Gate) Finish() {
	g.active.Store(false)
}

// Active reports whether a pass is running.
func (g *Gate) Active() bool {
	return g.active.Load()
}
