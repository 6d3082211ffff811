package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kartikroy01/video-chat/broker"
	"github.com/Kartikroy01/video-chat/logger"
	"github.com/Kartikroy01/video-chat/websocket"
)

// Server wraps the HTTP server carrying the websocket endpoint.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server exposing the websocket handler on /ws.
func NewServer(addr string, wsHandler http.HandlerFunc, readTimeout int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: time.Duration(readTimeout) * time.Second,
			// WriteTimeout must stay zero: it would sever long-lived
			// websocket connections. Per-message deadlines are handled
			// by the client sessions.
		},
	}
}

// Start begins serving; it blocks until the server stops.
func (s *Server) Start() {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server failed: %v", err)
	}
}

// Shutdown drains client connections, waits for in-flight publishes, then
// stops the HTTP server and closes the broker.
func (s *Server) Shutdown(ctx context.Context, manager *websocket.ClientManager, messageBroker broker.MessageBroker) {
	logger.Info("Shutting down server")

	manager.CloseAllConnections("Server shutting down")
	manager.WaitForCompletion()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	if messageBroker != nil {
		if err := messageBroker.Close(); err != nil {
			logger.Errorf("Broker close error: %v", err)
		}
	}
}
