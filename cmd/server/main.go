package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/internal/config"
	"github.com/omochice/broadcast-chat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	addr := flag.String("addr", cfg.Addr, "Address to listen on for WebSocket and TCP clients (e.g., :3000)")
	tcpAddr := flag.String("tcp-addr", cfg.TCPAddr, "Optional dedicated TCP address (e.g., :4000)")
	flag.Parse()

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var (
		metrics *chat.Metrics
		opts    = []server.Option{server.WithLogger(logger)}
	)
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = chat.NewMetrics(reg)
		opts = append(opts, server.WithGatherer(reg))
	}

	hub := chat.NewHub(
		chat.NewRegistry(),
		chat.NewBus(cfg.BusCapacity, chat.WithBusMetrics(metrics)),
		chat.WithLogger(logger.Named("chat")),
		chat.WithMetrics(metrics),
	)
	defer hub.Close()

	srv := server.New(server.Config{
		Address:         *addr,
		TCPAddress:      *tcpAddr,
		TrustProxy:      cfg.TrustProxy,
		MaxFrameSize:    cfg.MaxFrameSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, hub, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting chat server",
		zap.String("addr", *addr),
		zap.String("tcp_addr", *tcpAddr),
		zap.Int("bus_capacity", cfg.BusCapacity),
		zap.Bool("trust_proxy", cfg.TrustProxy),
	)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("chat server stopped")
	return nil
}

// newLogger builds a production zap logger at level, encoded as json or console.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Encoding = format
	if format == "console" {
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zcfg.Build()
}
