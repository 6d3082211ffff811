package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kartikroy01/video-chat/logger"
)

var (
	// WebSocket Metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})

	// Matchmaking Metrics
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_queue_depth",
		Help: "The number of users currently waiting for a random match.",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions_active",
		Help: "The current number of active chat sessions.",
	})
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_matches_total",
		Help: "The total number of pairings made.",
	})
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_relayed_total",
		Help: "The total number of relayed messages by kind.",
	}, []string{"kind"})

	// Auth Metrics
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "The total number of refused connections.",
	}, []string{"reason"})

	// Broker Metrics
	BrokerEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_events_published_total",
		Help: "The total number of lifecycle events published to the broker.",
	}, []string{"broker_type"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Infof("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
