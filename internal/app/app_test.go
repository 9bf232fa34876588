package app

import (
	"context"
	"net/http/httptest"
	"testing"

	"lingo-core/internal/backend"
	"lingo-core/internal/config"
	"lingo-core/internal/handlers"
	"lingo-core/internal/models"
	"lingo-core/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Backend.DemoActivityInterval = 0
	cfg.Backend.MinPasswordEntropy = 0
	return cfg
}

func TestNewDefaultsToLocalServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(), Overrides{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &services.LocalGateway{}, a.Services.Gateway)
	assert.IsType(t, &services.LocalModel{}, a.Services.Model)
	assert.IsType(t, &services.PlatformSpeechRecognizer{}, a.Services.Recognizer)
	assert.IsType(t, &services.PlatformTextToSpeech{}, a.Services.TTS)
	assert.Equal(t, models.ThemeLight, a.Theme.Mode())
	assert.Equal(t, models.LanguageCzech, a.Localizer.Language())
}

func TestNewRemoteMode(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.Mode = "remote"
	cfg.Backend.BaseURL = "http://127.0.0.1:1"

	a, err := New(context.Background(), cfg, Overrides{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &services.RemoteGateway{}, a.Services.Gateway)

	a.Start(context.Background())
	status := a.Session.State().BackendStatus
	require.NotNil(t, status)
	assert.False(t, status.IsReachable)
}

func TestNewWithCloudModel(t *testing.T) {
	cfg := testConfig()
	cfg.Model.GeminiAPIKey = "test-key"

	a, err := New(context.Background(), cfg, Overrides{})
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &services.FallbackModel{}, a.Services.Model)
	assert.IsType(t, &services.LocalModel{}, a.Services.Model.(*services.FallbackModel).Primary())
}

func TestNewPreferCloudAsksGeminiFirst(t *testing.T) {
	cfg := testConfig()
	cfg.Model.GeminiAPIKey = "test-key"
	cfg.Model.PreferCloud = true

	a, err := New(context.Background(), cfg, Overrides{})
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &services.FallbackModel{}, a.Services.Model)
	assert.IsType(t, &services.GeminiModel{}, a.Services.Model.(*services.FallbackModel).Primary())
}

func TestOverridesWin(t *testing.T) {
	gateway := services.NewInMemoryGateway("override-secret", 0)
	model := services.NewLocalModel()

	a, err := New(context.Background(), testConfig(), Overrides{Gateway: gateway, Model: model})
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, gateway, a.Services.Gateway)
	assert.Same(t, model, a.Services.Model)
}

func TestPreferencesFollowSession(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), Overrides{})
	require.NoError(t, err)
	defer a.Close()

	require.True(t, a.Session.SignInWithEmail(ctx, "demo@example.com", "secret").Success)
	require.NotNil(t, a.Session.SetLanguagePreference(ctx, models.LanguageEnglish))
	assert.Equal(t, "Settings", a.Localizer.T("settings_title"))

	require.NotNil(t, a.Session.SetThemePreference(ctx, models.ThemeDark))
	assert.Equal(t, "#0B1220", a.Theme.Palette().Background)
}

func TestPracticeEndToEnd(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), Overrides{})
	require.NoError(t, err)
	defer a.Close()

	practice := a.NewPractice("travel")
	defer practice.Close()

	available, err := practice.Prepare(ctx)
	require.NoError(t, err)
	assert.False(t, available)

	response, err := practice.Send(ctx, "I like trains")
	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Contains(t, response.Reply, "travel")
	assert.Len(t, practice.History(), 2)
}

func TestRemoteSessionAgainstServer(t *testing.T) {
	svc := backend.NewService(
		backend.NewMemoryStore(),
		backend.NewTokenIssuer("server-secret", 0),
		backend.NewMemoryFeedBroker(),
		nil,
		nil,
		backend.Options{SeedDemoData: true},
	)
	hub := handlers.NewHub()
	defer hub.Close()
	server := httptest.NewServer(handlers.NewRouter(svc, hub))
	defer server.Close()

	cfg := testConfig()
	cfg.Backend.Mode = "remote"
	cfg.Backend.BaseURL = server.URL

	ctx := context.Background()
	a, err := New(ctx, cfg, Overrides{})
	require.NoError(t, err)
	defer a.Close()

	a.Start(ctx)
	require.True(t, a.Session.State().BackendStatus.IsReachable)

	require.True(t, a.Session.SignInWithEmail(ctx, "remote@example.com", "secret").Success)
	state := a.Session.State()
	assert.Len(t, state.Friends, 2)
	require.NotNil(t, state.Progress)

	friend := a.Session.AddFriend(ctx, "carol@example.com")
	require.NotNil(t, friend)
	assert.Equal(t, "carol", friend.DisplayName)

	a.Session.SignOut(ctx)
	assert.False(t, a.Session.State().IsAuthenticated())
}
