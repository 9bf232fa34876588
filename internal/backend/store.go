package backend

import (
	"context"
	"strings"
	"sync"
	"time"

	"lingo-core/internal/models"
)

// Account is a backend user with credentials
type Account struct {
	Provider     models.AuthProvider
	Subject      string
	PasswordHash string
	PushToken    *string
	Profile      models.UserProfile
	CreatedAt    time.Time
}

// ID returns the user id
func (a *Account) ID() string {
	return a.Profile.ID
}

// Store persists backend state. Lookups return models.ErrNotFound when nothing matches.
type Store interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	FindAccount(ctx context.Context, provider models.AuthProvider, subject string) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error

	// GetProgress returns nil without error when no snapshot was recorded yet
	GetProgress(ctx context.Context, userID string) (*models.ProgressSnapshot, error)
	SaveProgress(ctx context.Context, progress *models.ProgressSnapshot) error

	ListFriends(ctx context.Context, userID string) ([]models.Friend, error)
	AddFriend(ctx context.Context, userID string, friend models.Friend) error

	// ListFeed returns the user's feed newest first
	ListFeed(ctx context.Context, userID string) ([]models.FriendActivity, error)
	AddFeedItem(ctx context.Context, userID string, activity models.FriendActivity) error

	CreateMessage(ctx context.Context, message *models.DirectMessage) error
	// ListMessages returns every message sent or received by the user in send order
	ListMessages(ctx context.Context, userID string) ([]models.DirectMessage, error)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	progress map[string]models.ProgressSnapshot
	friends  map[string][]models.Friend
	feed     map[string][]models.FriendActivity
	messages []models.DirectMessage
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		progress: make(map[string]models.ProgressSnapshot),
		friends:  make(map[string][]models.Friend),
		feed:     make(map[string][]models.FriendActivity),
	}
}

// CreateAccount stores a new account
func (s *MemoryStore) CreateAccount(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID()]; exists {
		return models.ErrInvalidInput
	}
	acc := *account
	s.accounts[account.ID()] = &acc
	return nil
}

// GetAccount returns an account by id
func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

// FindAccount returns the account for a provider subject
func (s *MemoryStore) FindAccount(ctx context.Context, provider models.AuthProvider, subject string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if acc.Provider == provider && acc.Subject == subject {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

// FindAccountByEmail returns the account with the given email
func (s *MemoryStore) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if acc.Profile.Email != "" && strings.EqualFold(acc.Profile.Email, email) {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

// UpdateAccount replaces a stored account
func (s *MemoryStore) UpdateAccount(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID()]; !ok {
		return models.ErrNotFound
	}
	acc := *account
	s.accounts[account.ID()] = &acc
	return nil
}

// GetProgress returns the user progress or nil
func (s *MemoryStore) GetProgress(ctx context.Context, userID string) (*models.ProgressSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SaveProgress replaces the user progress
func (s *MemoryStore) SaveProgress(ctx context.Context, progress *models.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.UserID] = *progress
	return nil
}

// ListFriends returns the user friends in insertion order
func (s *MemoryStore) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.Friend{}, s.friends[userID]...), nil
}

// AddFriend appends a friend to the user list
func (s *MemoryStore) AddFriend(ctx context.Context, userID string, friend models.Friend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.friends[userID] = append(s.friends[userID], friend)
	return nil
}

// ListFeed returns the user feed, newest first
func (s *MemoryStore) ListFeed(ctx context.Context, userID string) ([]models.FriendActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.FriendActivity{}, s.feed[userID]...), nil
}

// AddFeedItem prepends an activity to the user feed
func (s *MemoryStore) AddFeedItem(ctx context.Context, userID string, activity models.FriendActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feed[userID] = append([]models.FriendActivity{activity}, s.feed[userID]...)
	return nil
}

// CreateMessage stores a direct message
func (s *MemoryStore) CreateMessage(ctx context.Context, message *models.DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, *message)
	return nil
}

// ListMessages returns every message the user sent or received
func (s *MemoryStore) ListMessages(ctx context.Context, userID string) ([]models.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DirectMessage
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}
