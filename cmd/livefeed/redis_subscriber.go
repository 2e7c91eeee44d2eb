package main

import (
	"context"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

// livePattern matches the per-user channels the prediction service's audit
// relay publishes to. Channel format: predictions:live:{userID}
const livePattern = "predictions:live:*"

// RedisSubscriber listens to Redis PubSub and forwards prediction events
// to the Hub.
type RedisSubscriber struct {
	redis *redis.Client
	hub   *Hub
}

// NewRedisSubscriber creates a new RedisSubscriber instance
func NewRedisSubscriber(redisClient *redis.Client, hub *Hub) *RedisSubscriber {
	return &RedisSubscriber{
		redis: redisClient,
		hub:   hub,
	}
}

// Start begins listening to Redis PubSub channels
func (s *RedisSubscriber) Start(ctx context.Context) {
	pubsub := s.redis.PSubscribe(ctx, livePattern)
	defer pubsub.Close()

	log.Printf("Redis subscriber started, listening to: %s", livePattern)

	// Wait for confirmation that subscription was successful
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Fatalf("Failed to subscribe to Redis: %v", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("Redis subscriber stopping")
			return

		case msg := <-ch:
			if msg == nil {
				continue
			}

			userID := userIDFromChannel(msg.Channel)
			if userID == "" {
				log.Printf("Invalid channel format: %s", msg.Channel)
				continue
			}

			s.hub.broadcast <- &Message{
				UserID: userID,
				Data:   []byte(msg.Payload),
			}
		}
	}
}

// userIDFromChannel extracts the user id from a channel name.
// Example: "predictions:live:42" → "42"
func userIDFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 || parts[0] != "predictions" || parts[1] != "live" {
		return ""
	}
	return parts[2]
}
