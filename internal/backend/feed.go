package backend

import (
	"context"
	"sync"

	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
)

// FeedListener receives friend activities pushed to a user
type FeedListener func(activity models.FriendActivity)

// FeedBroker fans friend activities out to live subscribers
type FeedBroker interface {
	Publish(ctx context.Context, userID string, activity models.FriendActivity) error
	// Subscribe registers a listener; the returned func is safe to call more than once
	Subscribe(ctx context.Context, userID string, listener FeedListener) (func(), error)
	Close() error
}

// MemoryFeedBroker delivers activities to subscribers in this process
type MemoryFeedBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]FeedListener
	nextID      uint64
}

// NewMemoryFeedBroker creates an in-process feed broker
func NewMemoryFeedBroker() *MemoryFeedBroker {
	return &MemoryFeedBroker{
		subscribers: make(map[string]map[uint64]FeedListener),
	}
}

// Publish sends the activity to every subscriber of userID
func (b *MemoryFeedBroker) Publish(ctx context.Context, userID string, activity models.FriendActivity) error {
	b.mu.RLock()
	listeners := make([]FeedListener, 0, len(b.subscribers[userID]))
	for _, l := range b.subscribers[userID] {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(activity)
	}

	log.Debug().
		Str("user_id", userID).
		Str("friend_id", activity.FriendID).
		Int("subscribers", len(listeners)).
		Msg("Feed activity published")

	return nil
}

// Subscribe registers a listener for userID
func (b *MemoryFeedBroker) Subscribe(ctx context.Context, userID string, listener FeedListener) (func(), error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subscribers[userID] == nil {
		b.subscribers[userID] = make(map[uint64]FeedListener)
	}
	b.subscribers[userID][id] = listener
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[userID], id)
			if len(b.subscribers[userID]) == 0 {
				delete(b.subscribers, userID)
			}
		})
	}, nil
}

// Subscribers returns the number of live subscriptions for userID
func (b *MemoryFeedBroker) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[userID])
}

// Close drops every subscription
func (b *MemoryFeedBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]map[uint64]FeedListener)
	return nil
}
