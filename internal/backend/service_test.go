package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"lingo-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []models.DirectMessage
	token string
	from  string
}

func (n *recordingNotifier) NotifyDirectMessage(ctx context.Context, deviceToken, senderName string, message models.DirectMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, message)
	n.token = deviceToken
	n.from = senderName
	return nil
}

func newTestService(t *testing.T, seed bool) (*Service, *MemoryFeedBroker, *recordingNotifier) {
	t.Helper()
	feed := NewMemoryFeedBroker()
	notifier := &recordingNotifier{}
	svc := NewService(NewMemoryStore(), NewTokenIssuer("test-secret", time.Hour), feed, notifier, nil, Options{SeedDemoData: seed})
	return svc, feed, notifier
}

func signIn(t *testing.T, svc *Service, email string) *models.AuthSession {
	t.Helper()
	session, err := svc.SignIn(context.Background(), models.AuthCredentials{
		Provider: models.ProviderEmail,
		Email:    email,
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	return session
}

func TestSignInRegistersAndReturnsSameAccount(t *testing.T) {
	svc, _, _ := newTestService(t, false)

	first := signIn(t, svc, "Jana@Example.com")
	assert.Equal(t, "jana@example.com", first.User.Email)
	assert.Equal(t, "jana", first.User.DisplayName)
	assert.Equal(t, models.ThemeLight, first.User.Preferences.Theme)
	assert.Equal(t, models.LanguageCzech, first.User.Preferences.Language)
	assert.NotEmpty(t, first.AccessToken)
	require.NotNil(t, first.ExpiresAt)

	userID, err := svc.Tokens().Validate(first.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, userID)

	second := signIn(t, svc, "jana@example.com")
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	signIn(t, svc, "jana@example.com")
	ctx := context.Background()

	tests := []struct {
		name  string
		creds models.AuthCredentials
	}{
		{"wrong password", models.AuthCredentials{Provider: models.ProviderEmail, Email: "jana@example.com", Password: "nope"}},
		{"invalid email", models.AuthCredentials{Provider: models.ProviderEmail, Email: "not-an-email", Password: "secret"}},
		{"empty password", models.AuthCredentials{Provider: models.ProviderEmail, Email: "new@example.com"}},
		{"missing provider token", models.AuthCredentials{Provider: models.ProviderApple}},
		{"unknown provider", models.AuthCredentials{Provider: "facebook", Token: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, tt.creds)
			assert.ErrorIs(t, err, models.ErrAuthentication)
		})
	}
}

func TestSignInEnforcesPasswordEntropyForNewAccounts(t *testing.T) {
	svc := NewService(NewMemoryStore(), NewTokenIssuer("s", 0), NewMemoryFeedBroker(), nil, nil, Options{MinPasswordEntropy: 60})

	_, err := svc.SignIn(context.Background(), models.AuthCredentials{
		Provider: models.ProviderEmail, Email: "weak@example.com", Password: "abc",
	})
	assert.ErrorIs(t, err, models.ErrAuthentication)

	_, err = svc.SignIn(context.Background(), models.AuthCredentials{
		Provider: models.ProviderEmail, Email: "strong@example.com", Password: "Tr0ub4dor&3-correct-Horse!",
	})
	assert.NoError(t, err)
}

func TestSignInWithProviderToken(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	ctx := context.Background()

	creds := models.AuthCredentials{Provider: models.ProviderGoogle, Token: "google-subject-1", Email: "g@example.com"}
	first, err := svc.SignIn(ctx, creds)
	require.NoError(t, err)
	second, err := svc.SignIn(ctx, creds)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "g@example.com", first.User.Email)
}

func TestSeededAccount(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()
	session := signIn(t, svc, "seed@example.com")
	uid := session.User.ID

	assert.Equal(t, demoStreak, session.User.StreakCount)

	friends, err := svc.Friends(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, friends, 2)

	feed, err := svc.Feed(ctx, uid)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, models.ActivityLessonCompleted, feed[0].ActivityType)

	progress, err := svc.Progress(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 340, progress.TotalXP)
	assert.Equal(t, 130, progress.XPByFocus[models.FocusSpeaking])
}

func TestProgressIsNilWithoutData(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	session := signIn(t, svc, "empty@example.com")

	progress, err := svc.Progress(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestUpdatePreferences(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	ctx := context.Background()
	uid := signIn(t, svc, "prefs@example.com").User.ID

	updated, err := svc.UpdatePreferences(ctx, uid, models.UserPreferences{
		Theme:         models.ThemeDark,
		Language:      models.LanguageEnglish,
		DailyReminder: &models.DailyReminder{Enabled: true, Hour: 19, Minute: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, updated.Theme)

	profile, err := svc.Profile(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.LanguageEnglish, profile.Preferences.Language)
	require.NotNil(t, profile.Preferences.DailyReminder)
	assert.Equal(t, 19, profile.Preferences.DailyReminder.Hour)

	_, err = svc.UpdatePreferences(ctx, uid, models.UserPreferences{Theme: "neon", Language: models.LanguageEnglish})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAddFriend(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	ctx := context.Background()
	me := signIn(t, svc, "me@example.com").User
	other := signIn(t, svc, "Petra@example.com").User

	friend, err := svc.AddFriend(ctx, me.ID, "petra@example.com")
	require.NoError(t, err)
	assert.Equal(t, other.ID, friend.ID)
	assert.Equal(t, other.DisplayName, friend.DisplayName)

	again, err := svc.AddFriend(ctx, me.ID, "PETRA@example.com")
	require.NoError(t, err)
	assert.Equal(t, friend.ID, again.ID)

	stranger, err := svc.AddFriend(ctx, me.ID, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, "nobody", stranger.DisplayName)
	assert.Equal(t, models.LevelB1, stranger.Level)

	friends, err := svc.Friends(ctx, me.ID)
	require.NoError(t, err)
	assert.Len(t, friends, 2)

	_, err = svc.AddFriend(ctx, me.ID, "me@example.com")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.AddFriend(ctx, me.ID, "broken")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPublishActivityReachesSubscribers(t *testing.T) {
	svc, feed, _ := newTestService(t, false)
	ctx := context.Background()
	uid := signIn(t, svc, "feed@example.com").User.ID

	var received []models.FriendActivity
	unsubscribe, err := svc.SubscribeFeed(ctx, uid, func(a models.FriendActivity) {
		received = append(received, a)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers(uid))

	require.NoError(t, svc.PublishActivity(ctx, uid, DemoActivity(0, time.Now())))
	require.NoError(t, svc.PublishActivity(ctx, uid, DemoActivity(1, time.Now())))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, feed.Subscribers(uid))

	require.NoError(t, svc.PublishActivity(ctx, uid, DemoActivity(2, time.Now())))
	assert.Len(t, received, 2)

	stored, err := svc.Feed(ctx, uid)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, models.ActivityStreak, stored[0].ActivityType)
}

func TestSendMessageAndThreads(t *testing.T) {
	svc, _, notifier := newTestService(t, false)
	ctx := context.Background()
	me := signIn(t, svc, "me@example.com").User
	petra := signIn(t, svc, "petra@example.com").User
	require.NoError(t, svc.RegisterPushToken(ctx, petra.ID, "device-1"))

	_, err := svc.AddFriend(ctx, me.ID, "petra@example.com")
	require.NoError(t, err)
	_, err = svc.AddFriend(ctx, petra.ID, "me@example.com")
	require.NoError(t, err)
	bob, err := svc.AddFriend(ctx, me.ID, "bob@example.com")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, me.ID, petra.ID, "Ahoj!")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, me.ID, bob.ID, "Hi Bob")
	require.NoError(t, err)
	reply, err := svc.SendMessage(ctx, petra.ID, me.ID, "  Nazdar  ")
	require.NoError(t, err)
	assert.Equal(t, "Nazdar", reply.Content)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "device-1", notifier.token)
	assert.Equal(t, "me", notifier.from)

	threads, err := svc.Threads(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, petra.ID, threads[0].ID)
	assert.Equal(t, [2]string{petra.ID, me.ID}, threads[0].ParticipantIDs)
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, reply.SentAt, threads[0].LastMessageAt)
	assert.Equal(t, bob.ID, threads[1].ID)

	_, err = svc.SendMessage(ctx, me.ID, "stranger", "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.SendMessage(ctx, me.ID, petra.ID, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAvatarWithoutStorage(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	ctx := context.Background()
	uid := signIn(t, svc, "avatar@example.com").User.ID

	_, err := svc.RequestAvatarUpload(ctx, uid, "image/jpeg")
	assert.ErrorIs(t, err, models.ErrUnavailable)

	profile, err := svc.ConfirmAvatar(ctx, uid, "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/a.jpg", *profile.AvatarURL)
}

func TestTokenIssuerRejectsForeignTokens(t *testing.T) {
	a := NewTokenIssuer("secret-a", time.Hour)
	b := NewTokenIssuer("secret-b", time.Hour)

	token, _, err := a.Generate("user-1")
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.Error(t, err)

	expired := NewTokenIssuer("secret-a", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Generate("user-1")
	require.NoError(t, err)
	_, err = a.Validate(old)
	assert.Error(t, err)
}

func TestPreviewTruncates(t *testing.T) {
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'ž'
	}
	out := []rune(preview(string(long)))
	assert.Len(t, out, previewLength)
	assert.Equal(t, "short", preview("short"))
}

func TestRunDemoActivityPublishesToRecipients(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	session := signIn(t, svc, "demo@example.com")
	uid := session.User.ID

	received := make(chan models.FriendActivity, 8)
	unsubscribe, err := svc.SubscribeFeed(context.Background(), uid, func(a models.FriendActivity) {
		received <- a
	})
	require.NoError(t, err)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunDemoActivity(ctx, 5*time.Millisecond, func() []string { return []string{uid} })
		close(done)
	}()

	select {
	case a := <-received:
		assert.Equal(t, "demo-alice", a.FriendID)
		assert.Equal(t, models.ActivityLessonCompleted, a.ActivityType)
	case <-time.After(2 * time.Second):
		t.Fatal("no demo activity published")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunDemoActivity did not stop")
	}
}
