package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/omochice/broadcast-chat/pkg/protocol"
)

// State is a step of the session lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAddressCheck
	StateAwaitingName
	StateRelaying
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAddressCheck:
		return "address_check"
	case StateAwaitingName:
		return "awaiting_name"
	case StateRelaying:
		return "relaying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrRelayPanic wraps a panic recovered inside a relay loop.
var ErrRelayPanic = errors.New("chat: relay loop panicked")

// Session drives one connection through registration, relay and teardown.
type Session struct {
	id     string
	addr   string
	name   string
	hub    *Hub
	logger *zap.Logger
	state  atomic.Int32

	// pubMu orders this session's chat lines before its departure line.
	pubMu sync.Mutex
	left  bool
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Addr returns the caller address the session claims.
func (s *Session) Addr() string { return s.addr }

// Name returns the registered display name, or "" before registration.
func (s *Session) Name() string { return s.name }

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug("session state", zap.Stringer("state", st))
}

// Run takes the session from address check to Closed. Rejections are
// reported to the client over conn and end the session normally.
func (s *Session) Run(ctx context.Context, conn Conn) {
	defer s.setState(StateClosed)

	registry := s.hub.registry

	s.setState(StateAddressCheck)
	if !registry.TryRegisterAddress(s.addr) {
		s.reject(ctx, conn, ReasonAddressInUse, protocol.NoticeAlreadyConnected)
		return
	}
	guard := NewDisconnectGuard(s.addr, registry)
	defer guard.Release()

	s.setState(StateAwaitingName)
	name, ok := s.awaitName(ctx, conn)
	if !ok {
		return
	}
	s.name = name
	s.logger = s.logger.With(zap.String("name", name))
	s.hub.metrics.sessionStarted()
	defer s.leave()

	s.setState(StateRelaying)
	s.relay(ctx, conn)
}

func (s *Session) awaitName(ctx context.Context, conn Conn) (string, bool) {
	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			s.logStreamEnd("stream ended before a name was chosen", err)
			return "", false
		}
		if kind != FrameText {
			continue
		}

		name := strings.TrimSpace(string(data))
		if name == "" {
			s.reject(ctx, conn, ReasonEmptyName, protocol.NoticeEmptyName)
			return "", false
		}
		if !s.hub.registry.TryRegisterName(name) {
			s.reject(ctx, conn, ReasonNameInUse, protocol.NoticeNameInUse)
			return "", false
		}
		return name, true
	}
}

func (s *Session) reject(ctx context.Context, conn Conn, reason, notice string) {
	s.hub.metrics.rejected(reason)
	s.logger.Info("registration rejected", zap.String("reason", reason))
	if err := conn.Write(ctx, notice); err != nil {
		s.logger.Debug("failed to deliver rejection notice", zap.Error(err))
	}
}

// relay runs the outbound and inbound loops until the first one stops, then
// cancels the other without waiting for it.
func (s *Session) relay(ctx context.Context, conn Conn) {
	sub := s.hub.bus.Subscribe()
	defer sub.Close()

	s.logger.Info("session joined")
	s.hub.bus.Publish(protocol.Joined(s.name))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 2)
	go s.runLoop(ctx, "outbound", done, func(ctx context.Context) error {
		return s.outbound(ctx, conn, sub)
	})
	go s.runLoop(ctx, "inbound", done, func(ctx context.Context) error {
		return s.inbound(ctx, conn)
	})

	err := <-done
	cancel()
	s.logStreamEnd("relay stopped", err)
}

func (s *Session) runLoop(ctx context.Context, loop string, done chan<- error, fn func(context.Context) error) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("relay loop panicked", zap.String("loop", loop), zap.Any("panic", r))
			err = fmt.Errorf("%w: %s: %v", ErrRelayPanic, loop, r)
		}
		done <- err
	}()
	err = fn(ctx)
}

func (s *Session) outbound(ctx context.Context, conn Conn, sub *Subscription) error {
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if err := conn.Write(ctx, msg); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

func (s *Session) inbound(ctx context.Context, conn Conn) error {
	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if kind != FrameText {
			continue
		}
		if !s.publishChat(string(data)) {
			return ctx.Err()
		}
	}
}

// publishChat relays text unless the session has already announced its
// departure.
func (s *Session) publishChat(text string) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if s.left {
		return false
	}
	s.hub.bus.Publish(protocol.Chat(s.name, text))
	return true
}

// leave publishes the departure and frees the name. It runs before the
// address guard is released.
func (s *Session) leave() {
	s.setState(StateClosing)
	s.pubMu.Lock()
	s.left = true
	s.hub.bus.Publish(protocol.Left(s.name))
	s.pubMu.Unlock()
	s.hub.registry.UnregisterName(s.name)
	s.hub.metrics.sessionEnded()
	s.logger.Info("session left")
}

func (s *Session) logStreamEnd(msg string, err error) {
	if err == nil || IsStreamClosed(err) {
		s.logger.Debug(msg, zap.Error(err))
		return
	}
	s.logger.Info(msg, zap.Error(err))
}
