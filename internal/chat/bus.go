package chat

import (
	"context"
	"errors"
	"sync"
)

// DefaultBusCapacity is the per-subscriber queue size used when none is given.
const DefaultBusCapacity = 100

var (
	// ErrSubscriptionClosed is returned by Recv once the subscription has been
	// closed and drained.
	ErrSubscriptionClosed = errors.New("chat: subscription closed")

	// ErrLagged is returned by Recv once a subscription has been dropped because
	// its queue overflowed.
	ErrLagged = errors.New("chat: subscriber lagged behind")
)

// Bus fans every published message out to all current subscribers.
//
// Each subscriber owns a bounded queue. Publish never blocks: a subscriber
// whose queue is full is dropped, its subscription is closed and Recv reports
// ErrLagged after the queued messages are drained.
type Bus struct {
	mu       sync.Mutex
	capacity int
	subs     map[uint64]*Subscription
	nextID   uint64
	closed   bool
	metrics  *Metrics
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusMetrics records publishes and lagging drops in m.
func WithBusMetrics(m *Metrics) BusOption {
	return func(b *Bus) {
		b.metrics = m
	}
}

// NewBus creates a Bus whose subscribers each buffer up to capacity messages.
// A non-positive capacity falls back to DefaultBusCapacity.
func NewBus(capacity int, opts ...BusOption) *Bus {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	b := &Bus{
		capacity: capacity,
		subs:     make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish enqueues msg for every current subscriber and returns how many
// received it. Publishing with no subscribers silently discards msg.
//
// The bus lock is held for the whole fan-out, so all subscribers observe
// concurrent publishes in the same relative order.
func (b *Bus) Publish(msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.published()

	delivered := 0
	for id, sub := range b.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			sub.lagged = true
			delete(b.subs, id)
			sub.closeLocked()
			b.metrics.laggingDropped()
		}
	}
	return delivered
}

// Subscribe returns a subscription that observes messages published after
// this call. Subscribing to a closed bus yields an already closed subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id:  b.nextID,
		bus: b,
		ch:  make(chan string, b.capacity),
	}
	b.nextID++

	if b.closed {
		sub.closeLocked()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.closeLocked()
	}
}

// Subscription is one receiving handle on a Bus.
type Subscription struct {
	id  uint64
	bus *Bus
	ch  chan string

	// guarded by bus.mu
	closed bool
	lagged bool
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan string {
	return s.ch
}

// Recv blocks until the next message, the end of the subscription, or ctx
// is done.
func (s *Subscription) Recv(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case msg, ok := <-s.ch:
		if ok {
			return msg, nil
		}
		if s.Lagged() {
			return "", ErrLagged
		}
		return "", ErrSubscriptionClosed
	}
}

// Lagged reports whether the subscription was dropped for overflowing.
func (s *Subscription) Lagged() bool {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.lagged
}

// Close detaches the subscription from the bus. It is safe to call more than
// once and after the bus itself is closed.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
