// Package server accepts chat clients on a single port, telling browser
// (HTTP/WebSocket) connections apart from raw TCP ones.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/internal/transport/tcp"
	"github.com/omochice/broadcast-chat/internal/transport/ws"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

// Config holds the listener settings.
type Config struct {
	// Address serves HTTP, WebSocket and raw TCP clients.
	Address string
	// TCPAddress, when set, additionally accepts raw TCP clients on their own port.
	TCPAddress      string
	TrustProxy      bool
	MaxFrameSize    int
	ShutdownTimeout time.Duration
}

// Server represents a server that handles both TCP and WebSocket connections
type Server struct {
	cfg      Config
	hub      *chat.Hub
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	listener    net.Listener
	tcpListener net.Listener
	httpConns   *connListener
	httpServer  *http.Server
	tcp         *tcp.Server

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	stop   sync.Once

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New creates a Server for hub. Nothing listens until Listen or Start.
func New(cfg Config, hub *chat.Hub, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	s := &Server{
		cfg:    cfg,
		hub:    hub,
		logger: zap.NewNop(),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.tcp = tcp.New(hub, s.logger.Named("tcp"), cfg.MaxFrameSize)
	return s
}

// Listen binds the configured addresses.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	if s.cfg.TCPAddress != "" {
		tcpListener, err := net.Listen("tcp", s.cfg.TCPAddress)
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to start TCP server: %w", err)
		}
		s.tcpListener = tcpListener
	}

	s.httpConns = newConnListener(listener.Addr())
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
	return nil
}

// Serve accepts connections until Stop. Listen must have succeeded.
func (s *Server) Serve() error {
	s.logger.Info("unified server started", zap.String("addr", s.Addr()))

	if !s.track() {
		return nil
	}
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(s.httpConns); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	if s.tcpListener != nil && s.track() {
		go func() {
			defer s.wg.Done()
			if err := s.tcp.Serve(s.ctx, s.tcpListener); err != nil {
				s.logger.Error("tcp server error", zap.Error(err))
			}
		}()
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("failed to accept connection", zap.Error(err))
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track() {
			_ = conn.Close()
			return nil
		}
		go s.handleConnection(conn)
	}
}

// track counts one more goroutine for Stop to wait on. It reports false once
// Stop has begun waiting.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

// Start listens and serves until Stop.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Run serves until ctx is done, then shuts down within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Serve)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Stop(stopCtx)
	})
	return g.Wait()
}

// Stop closes the listeners, ends every session and waits for them, bounded
// by ctx.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		close(s.quit)
		s.cancel()

		if s.listener != nil {
			err = multierr.Append(err, ignoreClosed(s.listener.Close()))
		}
		if s.tcpListener != nil {
			err = multierr.Append(err, ignoreClosed(s.tcpListener.Close()))
		}
		if s.httpServer != nil {
			err = multierr.Append(err, s.httpServer.Shutdown(ctx))
		}
		err = multierr.Append(err, s.hub.Wait(ctx))

		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		s.wg.Wait()
		s.logger.Info("unified server stopped")
	})
	return err
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// TCPAddr returns the dedicated TCP listening address, if any.
func (s *Server) TCPAddr() string {
	if s.tcpListener != nil {
		return s.tcpListener.Addr().String()
	}
	return ""
}

// handleConnection determines whether the connection is HTTP (WebSocket) or TCP
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	reader := bufio.NewReader(conn)
	stop := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	httpConn, err := isHTTP(reader)
	stop()
	if err != nil {
		s.logger.Debug("failed to peek connection", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		_ = conn.Close()
		return
	}

	if httpConn {
		if !s.httpConns.push(&bufferedConn{Conn: conn, reader: reader}) {
			_ = conn.Close()
		}
		return
	}
	s.tcp.ServeConn(s.ctx, conn, reader)
}

// Handler returns the HTTP routes: the chat page, the WebSocket endpoint,
// health and, when a gatherer is set, metrics.
func (s *Server) Handler() http.Handler {
	wsServer := ws.New(s.hub,
		ws.WithLogger(s.logger.Named("ws")),
		ws.WithTrustProxy(s.cfg.TrustProxy),
		ws.WithMaxFrameSize(s.cfg.MaxFrameSize),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", serveIndex)
	mux.Handle("/websocket", wsServer)
	mux.Handle("/ws", wsServer)
	mux.HandleFunc("GET /healthz", s.serveHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metricsHandler(s.gatherer, s.logger))
	}
	return mux
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
