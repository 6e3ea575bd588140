/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sourceSocket = "websocket"
	sourceAPI    = "api"

	resultAccepted = "accepted"
	resultRejected = "rejected"
)

type boardMetrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	boards      prometheus.Gauge
	clients     prometheus.Gauge
}

func newBoardMetrics() *boardMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &boardMetrics{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratebox",
			Name:      "submissions_total",
			Help:      "Rating submissions by source and validation result.",
		}, []string{"source", "result"}),
		boards: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ratebox",
			Name:      "boards",
			Help:      "Boards currently held in memory.",
		}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ratebox",
			Name:      "clients",
			Help:      "Connected websocket clients across all boards.",
		}),
	}
}

func (m *boardMetrics) submission(source string, accepted bool) {
	result := resultRejected
	if accepted {
		result = resultAccepted
	}

	m.submissions.WithLabelValues(source, result).Inc()
}

func registerMetricsHandler(cfg *Config, m *boardMetrics, mux *httprouter.Router) {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})

	mux.GET(cfg.prefix+"/metrics", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)
		handler.ServeHTTP(w, r)
	})

	cfg.log.Info("SERVE: Registered metrics handler", "path", cfg.prefix+"/metrics")
}
