package server

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed static/chat.html
var indexPage []byte

func serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

// Health is the /healthz payload.
type Health struct {
	Status      string `json:"status"`
	Addresses   int    `json:"addresses"`
	Names       int    `json:"names"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	registry := s.hub.Registry()
	health := Health{
		Status:      "ok",
		Addresses:   registry.AddressCount(),
		Names:       registry.NameCount(),
		Subscribers: s.hub.Bus().SubscriberCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Debug("failed to write health response", zap.Error(err))
	}
}

func metricsHandler(g prometheus.Gatherer, logger *zap.Logger) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger.Named("metrics")),
	})
}
