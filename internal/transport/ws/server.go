package ws

import (
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

// Server upgrades HTTP requests to WebSocket and hands them to the Hub.
type Server struct {
	hub          *chat.Hub
	logger       *zap.Logger
	trustProxy   bool
	maxFrameSize int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for upgrade failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTrustProxy takes the caller address from proxy headers when set.
func WithTrustProxy(trust bool) Option {
	return func(s *Server) {
		s.trustProxy = trust
	}
}

// WithMaxFrameSize bounds inbound frame size.
func WithMaxFrameSize(n int) Option {
	return func(s *Server) {
		s.maxFrameSize = n
	}
}

// New creates a WebSocket handler that uses the provided Hub.
func New(hub *chat.Hub, opts ...Option) *Server {
	s := &Server{
		hub:          hub,
		logger:       zap.NewNop(),
		maxFrameSize: protocol.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements http.Handler. It blocks for the lifetime of the session;
// the request context bounds it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := ClientAddress(r, s.trustProxy)

	netConn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.String("addr", addr), zap.Error(err))
		return
	}

	conn := NewConn(netConn, rw.Reader, ws.StateServerSide, s.maxFrameSize)
	defer conn.Close()

	s.hub.HandleConn(r.Context(), conn, addr)
}
