package tcp

import (
	"bufio"
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

// Server runs chat sessions over raw TCP connections and delegates to Hub.
type Server struct {
	hub          *chat.Hub
	logger       *zap.Logger
	maxFrameSize int
}

// New creates a TCP server that uses the provided Hub.
func New(hub *chat.Hub, logger *zap.Logger, maxFrameSize int) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFrameSize <= 0 {
		maxFrameSize = protocol.DefaultMaxFrameSize
	}
	return &Server{
		hub:          hub,
		logger:       logger,
		maxFrameSize: maxFrameSize,
	}
}

// ServeConn runs one session over conn and closes conn when it ends.
// br carries bytes already peeked from conn and may be nil.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn, br *bufio.Reader) {
	c := NewConn(conn, br, s.maxFrameSize)
	defer func() {
		if err := c.Close(); err != nil {
			s.logger.Debug("failed to close tcp connection", zap.Error(err))
		}
	}()

	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	s.hub.HandleConn(ctx, c, addr)
}

// Serve accepts connections from l until ctx is done or l fails.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	s.logger.Info("tcp server started", zap.String("addr", l.Addr().String()))
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.ServeConn(ctx, conn, nil)
	}
}
