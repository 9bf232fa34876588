package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lingo-core/internal/backend"
	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
)

// LocalGateway serves a single client session from an in-process backend
type LocalGateway struct {
	backend  *backend.Service
	interval time.Duration

	mu      sync.RWMutex
	session *models.AuthSession
}

// NewLocalGateway creates a gateway over svc. When interval is positive every
// feed subscription also receives a simulated friend activity at that rate.
func NewLocalGateway(svc *backend.Service, interval time.Duration) *LocalGateway {
	return &LocalGateway{backend: svc, interval: interval}
}

// NewInMemoryGateway creates a LocalGateway over a fresh in-memory backend
// with demo data, the default when no backend is configured.
func NewInMemoryGateway(secret string, interval time.Duration) *LocalGateway {
	svc := backend.NewService(
		backend.NewMemoryStore(),
		backend.NewTokenIssuer(secret, 0),
		backend.NewMemoryFeedBroker(),
		nil,
		nil,
		backend.Options{SeedDemoData: true},
	)
	return NewLocalGateway(svc, interval)
}

func (g *LocalGateway) userID() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return "", models.ErrNotAuthenticated
	}
	return g.session.User.ID, nil
}

// GetStatus reports whether the backend is reachable
func (g *LocalGateway) GetStatus(ctx context.Context) (models.BackendStatus, error) {
	return g.backend.Status(ctx), nil
}

// GetCurrentSession returns the active session or nil
func (g *LocalGateway) GetCurrentSession(ctx context.Context) (*models.AuthSession, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return nil, nil
	}
	session := *g.session
	return &session, nil
}

// SignIn authenticates and keeps the returned session
func (g *LocalGateway) SignIn(ctx context.Context, creds models.AuthCredentials) (*models.AuthSession, error) {
	session, err := g.backend.SignIn(ctx, creds)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.session = session
	g.mu.Unlock()

	result := *session
	return &result, nil
}

// SignOut forgets the session
func (g *LocalGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
	return nil
}

// UpdatePreferences saves the preferences of the signed-in user
func (g *LocalGateway) UpdatePreferences(ctx context.Context, prefs models.UserPreferences) (*models.UserPreferences, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}

	updated, err := g.backend.UpdatePreferences(ctx, uid, prefs)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.session != nil && g.session.User.ID == uid {
		session := *g.session
		session.User.Preferences = *updated
		g.session = &session
	}
	g.mu.Unlock()

	return updated, nil
}

// FetchProgress returns the latest progress snapshot or nil
func (g *LocalGateway) FetchProgress(ctx context.Context) (*models.ProgressSnapshot, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}
	return g.backend.Progress(ctx, uid)
}

// FetchFriends returns the friend list
func (g *LocalGateway) FetchFriends(ctx context.Context) ([]models.Friend, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}
	return g.backend.Friends(ctx, uid)
}

// AddFriend adds a friend by email
func (g *LocalGateway) AddFriend(ctx context.Context, email string) (*models.Friend, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}
	return g.backend.AddFriend(ctx, uid, email)
}

// FetchFriendFeed returns the friend feed, newest first
func (g *LocalGateway) FetchFriendFeed(ctx context.Context) ([]models.FriendActivity, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}
	return g.backend.Feed(ctx, uid)
}

// SendDirectMessage sends a message to a friend
func (g *LocalGateway) SendDirectMessage(ctx context.Context, friendID, content string) (*models.DirectMessage, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}
	return g.backend.SendMessage(ctx, uid, friendID, content)
}

// FetchMessageThreads returns the conversations grouped by friend
func (g *LocalGateway) FetchMessageThreads(ctx context.Context) ([]models.MessageThread, error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}
	return g.backend.Threads(ctx, uid)
}

// SubscribeToFriendFeed streams new friend activities to listener, plus simulated ones when an interval is set
func (g *LocalGateway) SubscribeToFriendFeed(ctx context.Context, listener FeedListener) (func(), error) {
	uid, err := g.userID()
	if err != nil {
		return nil, err
	}

	unsubscribe, err := g.backend.SubscribeFeed(ctx, uid, backend.FeedListener(listener))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to feed: %w", err)
	}

	done := make(chan struct{})
	if g.interval > 0 {
		go g.simulateActivity(uid, done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}, nil
}

// simulateActivity publishes a streak activity from the first friend on every tick
func (g *LocalGateway) simulateActivity(userID string, done <-chan struct{}) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			ctx := context.Background()
			friends, err := g.backend.Friends(ctx, userID)
			if err != nil || len(friends) == 0 {
				continue
			}
			activity := models.FriendActivity{
				FriendID:     friends[0].ID,
				ActivityType: models.ActivityStreak,
				Description:  fmt.Sprintf("%s kept a 10-day streak!", friends[0].DisplayName),
				OccurredAt:   now,
			}
			if err := g.backend.PublishActivity(ctx, userID, activity); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish simulated activity")
			}
		}
	}
}
