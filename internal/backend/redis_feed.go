package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lingo-core/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisFeedBroker relays friend activities over Redis Pub/Sub so that every
// API instance can deliver to its own websocket subscribers.
type RedisFeedBroker struct {
	client *redis.Client
}

// NewRedisFeedBroker connects to Redis
func NewRedisFeedBroker(ctx context.Context, url string) (*RedisFeedBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Msg("Redis feed broker connected")
	return &RedisFeedBroker{client: client}, nil
}

func feedChannel(userID string) string {
	return fmt.Sprintf("feed:%s", userID)
}

// Publish sends the activity to the user's channel
func (b *RedisFeedBroker) Publish(ctx context.Context, userID string, activity models.FriendActivity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	if err := b.client.Publish(ctx, feedChannel(userID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}

// Subscribe listens on the user's channel until the returned func is called
func (b *RedisFeedBroker) Subscribe(ctx context.Context, userID string, listener FeedListener) (func(), error) {
	pubsub := b.client.Subscribe(ctx, feedChannel(userID))

	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to feed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var activity models.FriendActivity
				if err := json.Unmarshal([]byte(msg.Payload), &activity); err != nil {
					log.Error().Err(err).Str("user_id", userID).Msg("Failed to decode feed activity")
					continue
				}
				listener(activity)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Failed to close feed subscription")
			}
		})
	}, nil
}

// Close closes the Redis client
func (b *RedisFeedBroker) Close() error {
	return b.client.Close()
}
