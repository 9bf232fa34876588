package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lingo-core/internal/models"
	"lingo-core/internal/services"

	"github.com/rs/zerolog/log"
)

// ProviderTokenSource obtains token material from a platform sign-in flow
type ProviderTokenSource func(ctx context.Context, provider models.AuthProvider) (string, error)

// Options tunes the manager
type Options struct {
	// CallTimeout bounds every gateway call; 0 means no timeout
	CallTimeout time.Duration
	// ProviderTokens supplies apple/google tokens; nil uses a stub token per provider
	ProviderTokens ProviderTokenSource
}

// SignInResult reports the outcome of a sign-in. Error is non-empty on failure.
type SignInResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Manager is the single source of truth for the session and the learner's
// social state. The UI reads State and calls the action methods; it never
// mutates the snapshot itself.
type Manager struct {
	gateway services.BackendGateway
	opts    Options

	mu          sync.Mutex
	state       Snapshot
	epoch       uint64
	authBusy    bool
	stopFeed    func()
	listeners   map[uint64]func(Snapshot)
	nextID      uint64
	pending     *Snapshot
	dispatching bool

	// prefMu serializes preference updates from read to apply
	prefMu sync.Mutex
}

// NewManager creates a signed-out manager over gateway
func NewManager(gateway services.BackendGateway, opts Options) *Manager {
	if opts.ProviderTokens == nil {
		opts.ProviderTokens = stubProviderToken
	}
	return &Manager{
		gateway:   gateway,
		opts:      opts,
		state:     signedOut(Snapshot{}),
		listeners: make(map[uint64]func(Snapshot)),
	}
}

func stubProviderToken(ctx context.Context, provider models.AuthProvider) (string, error) {
	return fmt.Sprintf("%s-demo-token", provider), nil
}

// State returns the current snapshot
func (m *Manager) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe calls fn with new snapshots, in order, until the returned func is
// called. fn must not call the preference setters.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// apply runs fn on the latest snapshot if the session epoch is still current
// and notifies subscribers. It reports whether the update was applied.
func (m *Manager) apply(epoch uint64, fn func(Snapshot) Snapshot) bool {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return false
	}
	m.state = fn(m.state)
	m.publishLocked()
	return true
}

// publishLocked queues the current snapshot for subscribers and releases m.mu.
// A single caller at a time delivers, draining the queue in order, so a
// subscriber always ends on the latest snapshot. Intermediate snapshots may be
// skipped.
func (m *Manager) publishLocked() {
	state := m.state
	m.pending = &state
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true

	for m.pending != nil {
		next := *m.pending
		m.pending = nil
		listeners := make([]func(Snapshot), 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
		m.mu.Unlock()

		for _, l := range listeners {
			l(next)
		}

		m.mu.Lock()
	}
	m.dispatching = false
	m.mu.Unlock()
}

// authenticated returns the current epoch and user id when signed in
func (m *Manager) authenticated() (uint64, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Session == nil {
		return 0, "", false
	}
	return m.epoch, m.state.Session.User.ID, true
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, m.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// Start loads the backend status and restores an existing session
func (m *Manager) Start(ctx context.Context) {
	m.RefreshStatus(ctx)

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	cctx, cancel := m.callContext(ctx)
	session, err := m.gateway.GetCurrentSession(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore session")
		return
	}
	if session == nil {
		return
	}

	if m.activate(ctx, epoch, *session) {
		log.Info().Str("user_id", session.User.ID).Msg("Session restored")
	}
}

// RefreshStatus reloads the advisory backend status
func (m *Manager) RefreshStatus(ctx context.Context) {
	cctx, cancel := m.callContext(ctx)
	status, err := m.gateway.GetStatus(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get backend status")
		status = models.BackendStatus{IsReachable: false}
	}

	m.mu.Lock()
	m.state = withStatus(status)(m.state)
	m.publishLocked()
}

// SignInWithEmail signs in with email and password
func (m *Manager) SignInWithEmail(ctx context.Context, email, password string) SignInResult {
	return m.signIn(ctx, func(context.Context) (models.AuthCredentials, error) {
		return models.AuthCredentials{
			Provider: models.ProviderEmail,
			Email:    email,
			Password: password,
		}, nil
	})
}

// SignInWithProvider signs in through a platform identity provider
func (m *Manager) SignInWithProvider(ctx context.Context, provider models.AuthProvider) SignInResult {
	return m.signIn(ctx, func(ctx context.Context) (models.AuthCredentials, error) {
		if provider != models.ProviderApple && provider != models.ProviderGoogle {
			return models.AuthCredentials{}, fmt.Errorf("%w: unsupported provider %q", models.ErrAuthentication, provider)
		}
		token, err := m.opts.ProviderTokens(ctx, provider)
		if err != nil {
			return models.AuthCredentials{}, fmt.Errorf("%w: %s", models.ErrAuthentication, err.Error())
		}
		return models.AuthCredentials{Provider: provider, Token: token}, nil
	})
}

func (m *Manager) signIn(ctx context.Context, credentials func(context.Context) (models.AuthCredentials, error)) SignInResult {
	m.mu.Lock()
	if m.authBusy {
		m.mu.Unlock()
		return SignInResult{Error: models.ErrAuthInProgress.Error()}
	}
	m.authBusy = true
	epoch := m.epoch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.authBusy = false
		m.mu.Unlock()
	}()

	creds, err := credentials(ctx)
	if err != nil {
		return failure(err)
	}

	cctx, cancel := m.callContext(ctx)
	session, err := m.gateway.SignIn(cctx, creds)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("provider", string(creds.Provider)).Msg("Sign-in failed")
		return failure(err)
	}

	if !m.activate(ctx, epoch, *session) {
		// signed out while the call was in flight
		m.signOutGateway(ctx)
		return SignInResult{Error: "sign-in was cancelled by sign-out"}
	}

	log.Info().Str("user_id", session.User.ID).Msg("Signed in")
	return SignInResult{Success: true}
}

func failure(err error) SignInResult {
	message := err.Error()
	if message == "" {
		message = "sign-in failed"
	}
	return SignInResult{Error: message}
}

// activate installs session when nothing changed since epoch, then loads the
// social state and opens the feed subscription.
func (m *Manager) activate(ctx context.Context, epoch uint64, session models.AuthSession) bool {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return false
	}
	m.epoch++
	current := m.epoch
	stop := m.stopFeed
	m.stopFeed = nil
	m.state = withSession(session)(m.state)
	m.publishLocked()

	if stop != nil {
		stop()
	}

	m.refreshAll(ctx, current)
	m.subscribeFeed(ctx, current)
	return true
}

func (m *Manager) refreshAll(ctx context.Context, epoch uint64) {
	var wg sync.WaitGroup
	for _, refresh := range []func(context.Context, uint64){
		m.refreshProgress,
		m.refreshFriends,
		m.refreshFeed,
		m.refreshThreads,
	} {
		wg.Add(1)
		go func(refresh func(context.Context, uint64)) {
			defer wg.Done()
			refresh(ctx, epoch)
		}(refresh)
	}
	wg.Wait()
}

func (m *Manager) subscribeFeed(ctx context.Context, epoch uint64) {
	cctx, cancel := m.callContext(ctx)
	unsubscribe, err := m.gateway.SubscribeToFriendFeed(cctx, func(activity models.FriendActivity) {
		if !m.apply(epoch, withActivity(activity)) {
			log.Debug().Str("friend_id", activity.FriendID).Msg("Dropped feed activity for ended session")
		}
	})
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to subscribe to friend feed")
		return
	}

	stop := onceFunc(unsubscribe)

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		stop()
		return
	}
	m.stopFeed = stop
	m.mu.Unlock()
}

func onceFunc(fn func()) func() {
	var once sync.Once
	return func() { once.Do(fn) }
}

// SignOut clears the session and all social state, then tells the gateway.
// Local state is cleared even when the gateway call fails.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.epoch++
	stop := m.stopFeed
	m.stopFeed = nil
	userID := m.state.UserID()
	m.state = signedOut(m.state)
	m.publishLocked()

	if stop != nil {
		stop()
	}
	m.signOutGateway(ctx)

	log.Info().Str("user_id", userID).Msg("Signed out")
}

func (m *Manager) signOutGateway(ctx context.Context) {
	cctx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.gateway.SignOut(cctx); err != nil {
		log.Warn().Err(err).Msg("Gateway sign-out failed")
	}
}

// RefreshProgress replaces the progress snapshot; no-op when signed out
func (m *Manager) RefreshProgress(ctx context.Context) {
	if epoch, _, ok := m.authenticated(); ok {
		m.refreshProgress(ctx, epoch)
	}
}

// RefreshFriends replaces the friend list; no-op when signed out
func (m *Manager) RefreshFriends(ctx context.Context) {
	if epoch, _, ok := m.authenticated(); ok {
		m.refreshFriends(ctx, epoch)
	}
}

// RefreshFeed replaces the friend feed; no-op when signed out
func (m *Manager) RefreshFeed(ctx context.Context) {
	if epoch, _, ok := m.authenticated(); ok {
		m.refreshFeed(ctx, epoch)
	}
}

// RefreshThreads replaces the message threads; no-op when signed out
func (m *Manager) RefreshThreads(ctx context.Context) {
	if epoch, _, ok := m.authenticated(); ok {
		m.refreshThreads(ctx, epoch)
	}
}

func (m *Manager) refreshProgress(ctx context.Context, epoch uint64) {
	cctx, cancel := m.callContext(ctx)
	progress, err := m.gateway.FetchProgress(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch progress")
		return
	}
	m.apply(epoch, withProgress(progress))
}

func (m *Manager) refreshFriends(ctx context.Context, epoch uint64) {
	cctx, cancel := m.callContext(ctx)
	friends, err := m.gateway.FetchFriends(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch friends")
		return
	}
	m.apply(epoch, withFriends(friends))
}

func (m *Manager) refreshFeed(ctx context.Context, epoch uint64) {
	cctx, cancel := m.callContext(ctx)
	feed, err := m.gateway.FetchFriendFeed(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch friend feed")
		return
	}
	m.apply(epoch, withFeed(feed))
}

func (m *Manager) refreshThreads(ctx context.Context, epoch uint64) {
	cctx, cancel := m.callContext(ctx)
	threads, err := m.gateway.FetchMessageThreads(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch message threads")
		return
	}
	m.apply(epoch, withThreads(threads))
}

// AddFriend adds a friend by email. Returns nil when signed out or on failure.
func (m *Manager) AddFriend(ctx context.Context, email string) *models.Friend {
	epoch, _, ok := m.authenticated()
	if !ok {
		return nil
	}

	cctx, cancel := m.callContext(ctx)
	friend, err := m.gateway.AddFriend(cctx, email)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to add friend")
		return nil
	}

	if !m.apply(epoch, withFriend(*friend)) {
		return nil
	}
	return friend
}

// SendMessage sends a direct message and appends it to the friend's thread.
// Returns nil when signed out or on failure.
func (m *Manager) SendMessage(ctx context.Context, friendID, content string) *models.DirectMessage {
	epoch, _, ok := m.authenticated()
	if !ok {
		return nil
	}

	cctx, cancel := m.callContext(ctx)
	message, err := m.gateway.SendDirectMessage(cctx, friendID, content)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("friend_id", friendID).Msg("Failed to send message")
		return nil
	}

	if !m.apply(epoch, withMessage(friendID, *message)) {
		return nil
	}
	return message
}

// SetThemePreference changes the theme. Returns nil when signed out or on failure.
func (m *Manager) SetThemePreference(ctx context.Context, mode models.ThemeMode) *models.UserPreferences {
	return m.updatePreferences(ctx, func(p models.UserPreferences) models.UserPreferences {
		p.Theme = mode
		return p
	})
}

// SetLanguagePreference changes the UI language. Returns nil when signed out or on failure.
func (m *Manager) SetLanguagePreference(ctx context.Context, code models.LanguageCode) *models.UserPreferences {
	return m.updatePreferences(ctx, func(p models.UserPreferences) models.UserPreferences {
		p.Language = code
		return p
	})
}

// SetDailyReminder changes the daily reminder; nil disables it
func (m *Manager) SetDailyReminder(ctx context.Context, reminder *models.DailyReminder) *models.UserPreferences {
	return m.updatePreferences(ctx, func(p models.UserPreferences) models.UserPreferences {
		if reminder != nil {
			r := *reminder
			p.DailyReminder = &r
		} else {
			p.DailyReminder = nil
		}
		return p
	})
}

// updatePreferences merges change into the current preferences, persists the
// result and stores the server-confirmed value in the session. Updates run one
// at a time so each one starts from the previous confirmed value.
func (m *Manager) updatePreferences(ctx context.Context, change func(models.UserPreferences) models.UserPreferences) *models.UserPreferences {
	m.prefMu.Lock()
	defer m.prefMu.Unlock()

	m.mu.Lock()
	if m.state.Session == nil {
		m.mu.Unlock()
		return nil
	}
	epoch := m.epoch
	prefs := change(m.state.Session.User.Preferences)
	m.mu.Unlock()

	if err := prefs.Validate(); err != nil {
		log.Warn().Err(err).Msg("Rejected preference update")
		return nil
	}

	cctx, cancel := m.callContext(ctx)
	updated, err := m.gateway.UpdatePreferences(cctx, prefs)
	cancel()
	if err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			log.Warn().Msg("Gateway has no session for preference update")
		} else {
			log.Warn().Err(err).Msg("Failed to update preferences")
		}
		return nil
	}

	if !m.apply(epoch, withPreferences(*updated)) {
		return nil
	}
	result := *updated
	return &result
}

// Close stops the feed subscription and drops every subscriber. The session
// is kept on the gateway.
func (m *Manager) Close() {
	m.mu.Lock()
	stop := m.stopFeed
	m.stopFeed = nil
	m.listeners = make(map[uint64]func(Snapshot))
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}
