// A standalone sink for chat lifecycle events. Moderators run it to tail
// matches and session teardowns without touching the realtime path.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/Kartikroy01/video-chat/broker"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")
	channel := getEnv("EVENT_CHANNEL", "chat-events")
	log.Printf("Connecting to Redis at %s, channel %s", redisAddr, channel)

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	events, err := broker.NewRedisBroker(rdb).Subscribe(ctx, channel)
	if err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}

	log.Println("Event sink started. Listening for lifecycle events...")

	for ev := range events {
		switch ev.Type {
		case broker.EventUserConnected, broker.EventUserDisconnected:
			log.Printf("[%s] user=%s server=%s", ev.Type, strings.Join(ev.UserIDs, ","), ev.ServerID)
		default:
			log.Printf("[%s] session=%s users=%s reason=%s", ev.Type, ev.SessionID, strings.Join(ev.UserIDs, ","), ev.Reason)
		}
	}
}
