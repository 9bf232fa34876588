package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lingo-core/internal/backend"
	"lingo-core/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	service *backend.Service
	feed    *backend.MemoryFeedBroker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	feed := backend.NewMemoryFeedBroker()
	service := backend.NewService(
		backend.NewMemoryStore(),
		backend.NewTokenIssuer("test-secret", time.Hour),
		feed,
		nil, nil,
		backend.Options{SeedDemoData: true},
	)
	hub := NewHub()
	srv := httptest.NewServer(NewRouter(service, hub))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testServer{Server: srv, service: service, feed: feed}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func (s *testServer) signIn(t *testing.T, email string) models.AuthSession {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/v1/sessions", "", models.AuthCredentials{
		Provider: models.ProviderEmail, Email: email, Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	return decode[models.AuthSession](t, res)
}

func TestStatusIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res := srv.do(t, http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, decode[models.BackendStatus](t, res).IsReachable)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/api/v1/session", "/api/v1/friends", "/api/v1/feed", "/api/v1/threads"} {
		res := srv.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
	}
}

func TestSignInErrors(t *testing.T) {
	srv := newTestServer(t)
	srv.signIn(t, "jana@example.com")

	res := srv.do(t, http.MethodPost, "/api/v1/sessions", "", models.AuthCredentials{
		Provider: models.ProviderEmail, Email: "jana@example.com", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/sessions", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	session := srv.signIn(t, "jana@example.com")

	res := srv.do(t, http.MethodGet, "/api/v1/session", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	current := decode[models.AuthSession](t, res)
	assert.Equal(t, session.User.ID, current.User.ID)
	assert.Equal(t, session.AccessToken, current.AccessToken)

	res = srv.do(t, http.MethodPut, "/api/v1/preferences", session.AccessToken, models.UserPreferences{
		Theme: models.ThemeDark, Language: models.LanguageEnglish,
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, models.ThemeDark, decode[models.UserPreferences](t, res).Theme)

	res = srv.do(t, http.MethodPut, "/api/v1/preferences", session.AccessToken, models.UserPreferences{
		Theme: "sepia", Language: models.LanguageEnglish,
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = srv.do(t, http.MethodDelete, "/api/v1/session", session.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestSocialRoutes(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t, "jana@example.com").AccessToken

	res := srv.do(t, http.MethodGet, "/api/v1/progress", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 340, decode[models.ProgressSnapshot](t, res).TotalXP)

	res = srv.do(t, http.MethodPost, "/api/v1/friends", token, AddFriendRequest{Email: "karel@example.com"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	friend := decode[models.Friend](t, res)
	assert.Equal(t, "karel", friend.DisplayName)

	res = srv.do(t, http.MethodPost, "/api/v1/friends", token, AddFriendRequest{})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = srv.do(t, http.MethodGet, "/api/v1/friends", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[[]models.Friend](t, res), 3)

	res = srv.do(t, http.MethodPost, "/api/v1/messages", token, SendMessageRequest{FriendID: friend.ID, Content: "Ahoj"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = srv.do(t, http.MethodPost, "/api/v1/messages", token, SendMessageRequest{FriendID: "nobody", Content: "Ahoj"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = srv.do(t, http.MethodGet, "/api/v1/threads", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	threads := decode[[]models.MessageThread](t, res)
	require.Len(t, threads, 1)
	assert.Equal(t, friend.ID, threads[0].ID)

	res = srv.do(t, http.MethodGet, "/api/v1/feed", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[[]models.FriendActivity](t, res), 1)
}

func TestProfileRoutes(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t, "jana@example.com").AccessToken

	res := srv.do(t, http.MethodPut, "/api/v1/devices", token, RegisterDeviceRequest{PushToken: "abc"})
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = srv.do(t, http.MethodPost, "/api/v1/avatar/upload", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res = srv.do(t, http.MethodPut, "/api/v1/avatar", token, ConfirmAvatarRequest{AvatarURL: "https://cdn.example.com/a.jpg"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	profile := decode[models.UserProfile](t, res)
	require.NotNil(t, profile.AvatarURL)
}

func TestWebSocketStreamsFeed(t *testing.T) {
	srv := newTestServer(t)
	session := srv.signIn(t, "jana@example.com")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + session.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	// the subscription is registered after the upgrade completes
	require.Eventually(t, func() bool {
		return srv.feed.Subscribers(session.User.ID) == 1
	}, 3*time.Second, 10*time.Millisecond)

	activity := backend.DemoActivity(1, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, srv.service.PublishActivity(context.Background(), session.User.ID, activity))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var received models.FriendActivity
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, activity.FriendID, received.FriendID)
	assert.Equal(t, activity.ActivityType, received.ActivityType)

	conn.Close()
	require.Eventually(t, func() bool {
		return srv.feed.Subscribers(session.User.ID) == 0
	}, 3*time.Second, 10*time.Millisecond)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token=bogus", nil)
	assert.Error(t, err)
}
