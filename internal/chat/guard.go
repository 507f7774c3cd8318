package chat

import "sync"

// DisconnectGuard releases a session's address claim exactly once.
// Release is meant to be deferred right after the address is claimed so that
// every exit path, including a panic, gives the address back.
type DisconnectGuard struct {
	addr     string
	registry *Registry
	once     sync.Once
}

// NewDisconnectGuard binds a guard to addr in registry.
func NewDisconnectGuard(addr string, registry *Registry) *DisconnectGuard {
	return &DisconnectGuard{addr: addr, registry: registry}
}

// Release unregisters the address. Calls after the first are no-ops, so a
// later session that claims the same address is never evicted by a stale guard.
func (g *DisconnectGuard) Release() {
	g.once.Do(func() {
		g.registry.UnregisterAddress(g.addr)
	})
}

// Addr returns the guarded address.
func (g *DisconnectGuard) Addr() string {
	return g.addr
}
