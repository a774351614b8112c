package control

import "sync"

// Gate is the shared "trading enabled" switch. The remote-control listener
// flips it; the engine reads it once at the start of each cycle, so a stop
// takes effect before the next cycle and never interrupts one in flight.
type Gate struct {
	mu      sync.Mutex
	enabled bool
	changed chan struct{}
}

func NewGate(enabled bool) *Gate {
	return &Gate{enabled: enabled, changed: make(chan struct{}, 1)}
}

func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Start enables trading and reports whether the state changed.
func (g *Gate) Start() bool {
	return g.set(true)
}

// Stop disables trading and reports whether the state changed.
func (g *Gate) Stop() bool {
	return g.set(false)
}

// Changed receives a value after any toggle. Waiters use it to cut an idle
// sleep short; it carries no state.
func (g *Gate) Changed() <-chan struct{} {
	return g.changed
}

func (g *Gate) set(v bool) bool {
	g.mu.Lock()
	if g.enabled == v {
		g.mu.Unlock()
		return false
	}
	g.enabled = v
	g.mu.Unlock()

	select {
	case g.changed <- struct{}{}:
	default:
	}
	return true
}
