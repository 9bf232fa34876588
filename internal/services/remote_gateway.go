package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lingo-core/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RemoteGateway talks to the dev backend HTTP API
type RemoteGateway struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer

	mu      sync.RWMutex
	session *models.AuthSession
}

// NewRemoteGateway creates a gateway for the API at baseURL
func NewRemoteGateway(baseURL string, client *http.Client) *RemoteGateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RemoteGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		dialer:  websocket.DefaultDialer,
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (g *RemoteGateway) token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return ""
	}
	return g.session.AccessToken
}

// do sends a JSON request and decodes the response into out. A 204 leaves out untouched.
func (g *RemoteGateway) do(ctx context.Context, method, path string, authenticated bool, in, out interface{}) error {
	token := ""
	if authenticated {
		if token = g.token(); token == "" {
			return models.ErrNotAuthenticated
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+"/api/v1"+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(res, authenticated)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(res *http.Response, authenticated bool) error {
	var body apiError
	_ = json.NewDecoder(res.Body).Decode(&body)
	message := body.Error
	if message == "" {
		message = res.Status
	}

	var kind error
	switch res.StatusCode {
	case http.StatusUnauthorized:
		kind = models.ErrAuthentication
		if authenticated {
			kind = models.ErrNotAuthenticated
		}
	case http.StatusNotFound:
		kind = models.ErrNotFound
	case http.StatusBadRequest:
		kind = models.ErrInvalidInput
	case http.StatusServiceUnavailable:
		kind = models.ErrUnavailable
	default:
		return fmt.Errorf("backend error %d: %s", res.StatusCode, message)
	}

	// the server message already carries the sentinel text
	if strings.HasPrefix(message, kind.Error()) {
		message = strings.TrimPrefix(strings.TrimPrefix(message, kind.Error()), ": ")
	}
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}

// GetStatus reports whether the backend is reachable
func (g *RemoteGateway) GetStatus(ctx context.Context) (models.BackendStatus, error) {
	var status models.BackendStatus
	if err := g.do(ctx, http.MethodGet, "/status", false, nil, &status); err != nil {
		log.Debug().Err(err).Msg("Backend unreachable")
		return models.BackendStatus{IsReachable: false}, nil
	}
	return status, nil
}

// GetCurrentSession returns the active session or nil
func (g *RemoteGateway) GetCurrentSession(ctx context.Context) (*models.AuthSession, error) {
	if g.token() == "" {
		return nil, nil
	}

	var session models.AuthSession
	err := g.do(ctx, http.MethodGet, "/session", true, nil, &session)
	if errors.Is(err, models.ErrNotAuthenticated) {
		g.setSession(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return nil, nil
	}
	current := *g.session
	current.User = session.User
	g.session = &current
	result := current
	return &result, nil
}

func (g *RemoteGateway) setSession(session *models.AuthSession) {
	g.mu.Lock()
	g.session = session
	g.mu.Unlock()
}

// SignIn authenticates and keeps the returned session
func (g *RemoteGateway) SignIn(ctx context.Context, creds models.AuthCredentials) (*models.AuthSession, error) {
	var session models.AuthSession
	if err := g.do(ctx, http.MethodPost, "/sessions", false, creds, &session); err != nil {
		return nil, err
	}
	g.setSession(&session)
	result := session
	return &result, nil
}

// SignOut ends the server session and forgets the token
func (g *RemoteGateway) SignOut(ctx context.Context) error {
	token := g.token()
	g.setSession(nil)
	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/api/v1/session", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	res.Body.Close()
	return nil
}

// UpdatePreferences saves the preferences of the signed-in user
func (g *RemoteGateway) UpdatePreferences(ctx context.Context, prefs models.UserPreferences) (*models.UserPreferences, error) {
	var updated models.UserPreferences
	if err := g.do(ctx, http.MethodPut, "/preferences", true, prefs, &updated); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.session != nil {
		session := *g.session
		session.User.Preferences = updated
		g.session = &session
	}
	g.mu.Unlock()

	return &updated, nil
}

// FetchProgress returns the latest progress snapshot or nil
func (g *RemoteGateway) FetchProgress(ctx context.Context) (*models.ProgressSnapshot, error) {
	var progress *models.ProgressSnapshot
	if err := g.do(ctx, http.MethodGet, "/progress", true, nil, &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// FetchFriends returns the friend list
func (g *RemoteGateway) FetchFriends(ctx context.Context) ([]models.Friend, error) {
	friends := []models.Friend{}
	if err := g.do(ctx, http.MethodGet, "/friends", true, nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// AddFriend adds a friend by email
func (g *RemoteGateway) AddFriend(ctx context.Context, email string) (*models.Friend, error) {
	var friend models.Friend
	if err := g.do(ctx, http.MethodPost, "/friends", true, map[string]string{"email": email}, &friend); err != nil {
		return nil, err
	}
	return &friend, nil
}

// FetchFriendFeed returns the friend feed, newest first
func (g *RemoteGateway) FetchFriendFeed(ctx context.Context) ([]models.FriendActivity, error) {
	feed := []models.FriendActivity{}
	if err := g.do(ctx, http.MethodGet, "/feed", true, nil, &feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// SendDirectMessage sends a message to a friend
func (g *RemoteGateway) SendDirectMessage(ctx context.Context, friendID, content string) (*models.DirectMessage, error) {
	req := map[string]string{"friend_id": friendID, "content": content}
	var message models.DirectMessage
	if err := g.do(ctx, http.MethodPost, "/messages", true, req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// FetchMessageThreads returns the conversations grouped by friend
func (g *RemoteGateway) FetchMessageThreads(ctx context.Context) ([]models.MessageThread, error) {
	threads := []models.MessageThread{}
	if err := g.do(ctx, http.MethodGet, "/threads", true, nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// SubscribeToFriendFeed opens the /ws stream and relays activities until unsubscribed
func (g *RemoteGateway) SubscribeToFriendFeed(ctx context.Context, listener FeedListener) (func(), error) {
	token := g.token()
	if token == "" {
		return nil, models.ErrNotAuthenticated
	}

	wsURL, err := g.feedURL(token)
	if err != nil {
		return nil, err
	}

	conn, _, err := g.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed stream: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			var activity models.FriendActivity
			if err := conn.ReadJSON(&activity); err != nil {
				select {
				case <-done:
				default:
					log.Warn().Err(err).Msg("Feed stream closed")
				}
				return
			}
			select {
			case <-done:
				return
			default:
				listener(activity)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
	}, nil
}

func (g *RemoteGateway) feedURL(token string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
