package backend

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"lingo-core/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

// Options tunes the backend service
type Options struct {
	// MinPasswordEntropy is required for new email accounts; 0 disables the check
	MinPasswordEntropy float64
	// SeedDemoData gives every new account demo friends, feed and progress
	SeedDemoData bool
}

// Service implements the learner-facing backend: accounts, preferences,
// progress, friends, the friend feed and direct messages.
type Service struct {
	store    Store
	tokens   *TokenIssuer
	feed     FeedBroker
	notifier Notifier
	avatars  AvatarStorage
	opts     Options
	now      func() time.Time
}

// NewService creates a new backend service. notifier and avatars may be nil.
func NewService(store Store, tokens *TokenIssuer, feed FeedBroker, notifier Notifier, avatars AvatarStorage, opts Options) *Service {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		feed:     feed,
		notifier: notifier,
		avatars:  avatars,
		opts:     opts,
		now:      time.Now,
	}
}

// Tokens returns the token issuer used for sessions
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Status reports backend reachability
func (s *Service) Status(ctx context.Context) models.BackendStatus {
	now := s.now()
	return models.BackendStatus{IsReachable: true, LastSyncAt: &now}
}

// SignIn authenticates the credentials, registering a new account on first
// sign-in, and issues an access token.
func (s *Service) SignIn(ctx context.Context, creds models.AuthCredentials) (*models.AuthSession, error) {
	var (
		account *Account
		err     error
	)

	switch creds.Provider {
	case models.ProviderEmail:
		account, err = s.signInEmail(ctx, creds.Email, creds.Password)
	case models.ProviderApple, models.ProviderGoogle:
		account, err = s.signInProvider(ctx, creds)
	default:
		err = fmt.Errorf("%w: unsupported provider %q", models.ErrAuthentication, creds.Provider)
	}
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Generate(account.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	log.Info().
		Str("user_id", account.ID()).
		Str("provider", string(account.Provider)).
		Msg("User signed in")

	return &models.AuthSession{
		User:        account.Profile,
		AccessToken: token,
		ExpiresAt:   &expiresAt,
	}, nil
}

func (s *Service) signInEmail(ctx context.Context, email, password string) (*Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrAuthentication, "invalid email address")
	}
	if password == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrAuthentication, "password is required")
	}

	account, err := s.store.FindAccount(ctx, models.ProviderEmail, email)
	if err == nil {
		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrAuthentication, "invalid email or password")
		}
		return account, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if s.opts.MinPasswordEntropy > 0 {
		if err := passwordvalidator.Validate(password, s.opts.MinPasswordEntropy); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrAuthentication, err.Error())
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.register(ctx, models.ProviderEmail, email, email, string(hash))
}

func (s *Service) signInProvider(ctx context.Context, creds models.AuthCredentials) (*Account, error) {
	subject := strings.TrimSpace(creds.Token)
	if subject == "" {
		return nil, fmt.Errorf("%w: missing %s token", models.ErrAuthentication, creds.Provider)
	}

	account, err := s.store.FindAccount(ctx, creds.Provider, subject)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	email := ""
	if creds.Email != "" {
		if normalized, err := normalizeEmail(creds.Email); err == nil {
			email = normalized
		}
	}
	return s.register(ctx, creds.Provider, subject, email, "")
}

func (s *Service) register(ctx context.Context, provider models.AuthProvider, subject, email, passwordHash string) (*Account, error) {
	displayName := "Learner"
	if email != "" {
		displayName = localPart(email)
	}

	account := &Account{
		Provider:     provider,
		Subject:      subject,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
		Profile: models.UserProfile{
			ID:          uuid.New().String(),
			Email:       email,
			DisplayName: displayName,
			Level:       models.LevelB1,
			Preferences: models.UserPreferences{
				Theme:    models.ThemeLight,
				Language: models.LanguageCzech,
			},
			Achievements: []models.Achievement{},
		},
	}

	if s.opts.SeedDemoData {
		account.Profile.StreakCount = demoStreak
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if s.opts.SeedDemoData {
		if err := s.seed(ctx, account.ID()); err != nil {
			log.Warn().Err(err).Str("user_id", account.ID()).Msg("Failed to seed demo data")
		}
	}

	log.Info().
		Str("user_id", account.ID()).
		Str("provider", string(provider)).
		Msg("Account registered")

	return account, nil
}

// Profile returns the user's profile
func (s *Service) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account.Profile, nil
}

// UpdatePreferences replaces the user's preferences and returns the stored value
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs models.UserPreferences) (*models.UserPreferences, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Profile.Preferences = prefs
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	return &account.Profile.Preferences, nil
}

// Progress returns the latest progress snapshot, or nil if none exists
func (s *Service) Progress(ctx context.Context, userID string) (*models.ProgressSnapshot, error) {
	return s.store.GetProgress(ctx, userID)
}

// Friends returns the user's friend list
func (s *Service) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	return s.store.ListFriends(ctx, userID)
}

// AddFriend adds a friend by email. Adding the same email twice returns the
// existing friend.
func (s *Service) AddFriend(ctx context.Context, userID, email string) (*models.Friend, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}

	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	for _, f := range friends {
		if strings.EqualFold(f.Email, email) {
			return &f, nil
		}
	}

	friend := models.Friend{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: localPart(email),
		Level:       models.LevelB1,
	}

	// link to a registered learner when there is one
	account, err := s.store.FindAccountByEmail(ctx, email)
	switch {
	case err == nil:
		if account.ID() == userID {
			return nil, fmt.Errorf("%w: cannot add yourself as a friend", models.ErrInvalidInput)
		}
		friend.ID = account.ID()
		friend.DisplayName = account.Profile.DisplayName
		friend.AvatarURL = account.Profile.AvatarURL
		friend.Level = account.Profile.Level
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := s.store.AddFriend(ctx, userID, friend); err != nil {
		return nil, fmt.Errorf("failed to add friend: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("friend_id", friend.ID).
		Msg("Friend added")

	return &friend, nil
}

// Feed returns the user's friend activity feed, newest first
func (s *Service) Feed(ctx context.Context, userID string) ([]models.FriendActivity, error) {
	return s.store.ListFeed(ctx, userID)
}

// PublishActivity records an activity in the user's feed and pushes it to
// live subscribers.
func (s *Service) PublishActivity(ctx context.Context, userID string, activity models.FriendActivity) error {
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = s.now()
	}
	if err := s.store.AddFeedItem(ctx, userID, activity); err != nil {
		return fmt.Errorf("failed to store activity: %w", err)
	}
	if err := s.feed.Publish(ctx, userID, activity); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}

// SubscribeFeed registers a listener for the user's live feed
func (s *Service) SubscribeFeed(ctx context.Context, userID string, listener FeedListener) (func(), error) {
	return s.feed.Subscribe(ctx, userID, listener)
}

// SendMessage stores a direct message from userID to friendID and pushes a
// notification to the receiver when they registered a device.
func (s *Service) SendMessage(ctx context.Context, userID, friendID, content string) (*models.DirectMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", models.ErrInvalidInput)
	}

	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	if !containsFriend(friends, friendID) {
		return nil, fmt.Errorf("friend %s: %w", friendID, models.ErrNotFound)
	}

	message := &models.DirectMessage{
		ID:         uuid.New().String(),
		ThreadID:   friendID,
		SenderID:   userID,
		ReceiverID: friendID,
		Content:    content,
		SentAt:     s.now(),
	}

	if err := s.store.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	s.notifyReceiver(ctx, userID, *message)

	return message, nil
}

func (s *Service) notifyReceiver(ctx context.Context, senderID string, message models.DirectMessage) {
	receiver, err := s.store.GetAccount(ctx, message.ReceiverID)
	if err != nil || receiver.PushToken == nil || *receiver.PushToken == "" {
		return
	}

	senderName := "Friend"
	if sender, err := s.store.GetAccount(ctx, senderID); err == nil {
		senderName = sender.Profile.DisplayName
	}

	if err := s.notifier.NotifyDirectMessage(ctx, *receiver.PushToken, senderName, message); err != nil {
		log.Error().
			Err(err).
			Str("receiver_id", message.ReceiverID).
			Msg("Failed to notify receiver")
	}
}

// Threads groups the user's messages into threads keyed by the other
// participant, in order of the first message.
func (s *Service) Threads(ctx context.Context, userID string) ([]models.MessageThread, error) {
	messages, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return groupThreads(userID, messages), nil
}

func groupThreads(userID string, messages []models.DirectMessage) []models.MessageThread {
	threads := []models.MessageThread{}
	index := make(map[string]int)

	for _, m := range messages {
		counterpart := m.ReceiverID
		if m.SenderID != userID {
			counterpart = m.SenderID
		}
		m.ThreadID = counterpart

		i, ok := index[counterpart]
		if !ok {
			i = len(threads)
			index[counterpart] = i
			threads = append(threads, models.MessageThread{
				ID:             counterpart,
				ParticipantIDs: [2]string{counterpart, userID},
			})
		}
		threads[i].Messages = append(threads[i].Messages, m)
		threads[i].LastMessageAt = m.SentAt
	}

	return threads
}

// RegisterPushToken stores the device token used for message pushes
func (s *Service) RegisterPushToken(ctx context.Context, userID, token string) error {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		account.PushToken = nil
	} else {
		account.PushToken = &token
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// RequestAvatarUpload returns a pre-signed upload target for the user's avatar
func (s *Service) RequestAvatarUpload(ctx context.Context, userID, contentType string) (*AvatarUpload, error) {
	if s.avatars == nil {
		return nil, fmt.Errorf("avatar uploads: %w", models.ErrUnavailable)
	}
	return s.avatars.PresignUpload(ctx, userID, contentType)
}

// ConfirmAvatar points the user's profile at an uploaded avatar
func (s *Service) ConfirmAvatar(ctx context.Context, userID, avatarURL string) (*models.UserProfile, error) {
	avatarURL = strings.TrimSpace(avatarURL)
	if avatarURL == "" {
		return nil, fmt.Errorf("%w: avatar_url is required", models.ErrInvalidInput)
	}

	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.Profile.AvatarURL = &avatarURL
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	return &account.Profile, nil
}

func containsFriend(friends []models.Friend, id string) bool {
	for _, f := range friends {
		if f.ID == id {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
