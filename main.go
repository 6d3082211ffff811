package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Kartikroy01/video-chat/auth"
	"github.com/Kartikroy01/video-chat/broker"
	"github.com/Kartikroy01/video-chat/chat"
	"github.com/Kartikroy01/video-chat/config"
	"github.com/Kartikroy01/video-chat/filter"
	"github.com/Kartikroy01/video-chat/logger"
	"github.com/Kartikroy01/video-chat/metrics"
	"github.com/Kartikroy01/video-chat/presence"
	"github.com/Kartikroy01/video-chat/server"
	"github.com/Kartikroy01/video-chat/services"
	"github.com/Kartikroy01/video-chat/websocket"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		logger.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Unique ID for this server instance, recorded on presence entries
	// and lifecycle events.
	serverID := uuid.New().String()
	logger.Infof("Starting server instance with ID: %s", serverID)

	redisClient, err := services.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer services.CloseRedisClient(redisClient)

	presenceStore := presence.NewRedisStore(redisClient, time.Duration(cfg.WebSocket.PresenceTTL)*time.Second)

	var messageBroker broker.MessageBroker
	logger.Infof("Initializing message broker of type: %s", cfg.Broker.Type)
	switch strings.ToLower(cfg.Broker.Type) {
	case "redis":
		messageBroker = broker.NewRedisBroker(redisClient)
	case "kafka":
		messageBroker, err = broker.NewKafkaBroker(cfg.Broker.Kafka.Brokers, cfg.Broker.Kafka.GroupID)
		if err != nil {
			logger.Fatalf("Failed to create Kafka broker: %v", err)
		}
	default:
		// Config validation catches this; checked again as a safeguard.
		logger.Fatalf("Invalid broker type specified: %s", cfg.Broker.Type)
	}
	defer messageBroker.Close()

	gateway := auth.NewGateway(&cfg.Auth, redisClient)
	hub := chat.NewHub(filter.New(cfg.Chat.FilterWords))
	clientManager := websocket.NewClientManager(presenceStore, serverID)
	handler := websocket.NewHandler(clientManager, hub, gateway, messageBroker, cfg)

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	port := ":" + strconv.Itoa(cfg.Server.Port)
	srv := server.NewServer(port, handler.HandleWebSocket, cfg.Server.ReadTimeout)

	go srv.Start()
	logger.Info("Video chat gateway started on " + port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	srv.Shutdown(ctx, clientManager, messageBroker)
}
