package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub wires sessions to the shared Registry and Bus.
// Both TCP and WebSocket servers share a single Hub instance.
type Hub struct {
	registry *Registry
	bus      *Bus
	metrics  *Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger sessions derive theirs from.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics records session and rejection metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a Hub around registry and bus.
func NewHub(registry *Registry, bus *Bus, opts ...Option) *Hub {
	h := &Hub{
		registry: registry,
		bus:      bus,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the shared registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Bus returns the shared broadcast bus.
func (h *Hub) Bus() *Bus {
	return h.bus
}

// NewSession prepares a session for a caller at addr.
func (h *Hub) NewSession(addr string) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		addr:   addr,
		hub:    h,
		logger: h.logger.With(zap.String("session_id", id), zap.String("addr", addr)),
	}
}

// HandleConn runs a session for conn until it reaches Closed.
// The caller keeps ownership of conn and closes it afterwards.
// Once Wait has been called, new connections are turned away without a session.
func (h *Hub) HandleConn(ctx context.Context, conn Conn, addr string) {
	if !h.admit() {
		h.logger.Debug("hub is draining, connection refused", zap.String("addr", addr))
		return
	}
	defer h.wg.Done()

	session := h.NewSession(addr)
	defer func() {
		if r := recover(); r != nil {
			session.logger.Error("session panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	session.Run(ctx, conn)
}

func (h *Hub) admit() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

// Wait stops admitting sessions and blocks until every session started by
// HandleConn has finished, or ctx is done.
//
// A session finishes once it has left the room and released its address. The
// relay loop that lost the race may still be unwinding at that point; it
// publishes nothing further.
func (h *Hub) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the bus down, which ends every relaying session.
func (h *Hub) Close() {
	h.bus.Close()
}
