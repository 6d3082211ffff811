package broker

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/Kartikroy01/video-chat/logger"
)

// RedisBroker carries lifecycle events over Redis pub/sub. It can share
// the client used by the presence store and ban list.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, event Event) error {
	return b.client.Publish(ctx, channel, event).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Confirm the subscription before handing back the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan Event, 100)
	go func() {
		defer close(events)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.Errorf("Event decode error: %v", err)
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

func (b *RedisBroker) Type() string {
	return "redis"
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}
