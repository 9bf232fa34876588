package app

import (
	"context"
	"fmt"

	"lingo-core/internal/backend"
	"lingo-core/internal/config"
	"lingo-core/internal/conversation"
	"lingo-core/internal/preferences"
	"lingo-core/internal/services"
	"lingo-core/internal/session"

	"github.com/rs/zerolog/log"
)

// Services is the container of service contract implementations
type Services struct {
	Gateway    services.BackendGateway
	Model      services.ConversationalModel
	Recognizer services.SpeechRecognizer
	TTS        services.TextToSpeech
}

// Overrides replace individual parts of the container. Platform bindings are
// used when the matching service is not overridden.
type Overrides struct {
	Gateway        services.BackendGateway
	Model          services.ConversationalModel
	Recognizer     services.SpeechRecognizer
	TTS            services.TextToSpeech
	SpeechEngine   services.SpeechEngine
	Synthesizer    services.SpeechSynthesizer
	SchemeResolver preferences.SchemeResolver
	ProviderTokens session.ProviderTokenSource
}

// App wires the services, the session manager and the preference stores
type App struct {
	Services  Services
	Session   *session.Manager
	Theme     *preferences.Theme
	Localizer *preferences.Localizer

	cfg    *config.Config
	unbind func()
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config, overrides Overrides) (*App, error) {
	gateway := overrides.Gateway
	if gateway == nil {
		gateway = newGateway(cfg)
	}

	model := overrides.Model
	if model == nil {
		var err error
		model, err = newModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	recognizer := overrides.Recognizer
	if recognizer == nil {
		recognizer = services.NewPlatformSpeechRecognizer(overrides.SpeechEngine, services.RecognitionOptions{
			Language:        cfg.Speech.Language,
			MaxAlternatives: 1,
		})
	}

	tts := overrides.TTS
	if tts == nil {
		tts = services.NewPlatformTextToSpeech(overrides.Synthesizer, services.SpeechOptions{
			Language: cfg.Speech.Language,
			Rate:     cfg.Speech.Rate,
		})
	}

	theme, err := preferences.NewTheme(cfg.Preferences.Theme, overrides.SchemeResolver)
	if err != nil {
		return nil, fmt.Errorf("failed to create theme: %w", err)
	}
	localizer, err := preferences.NewLocalizer(cfg.Preferences.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to create localizer: %w", err)
	}

	manager := session.NewManager(gateway, session.Options{
		CallTimeout:    cfg.Backend.CallTimeout,
		ProviderTokens: overrides.ProviderTokens,
	})

	a := &App{
		Services: Services{
			Gateway:    gateway,
			Model:      model,
			Recognizer: recognizer,
			TTS:        tts,
		},
		Session:   manager,
		Theme:     theme,
		Localizer: localizer,
		cfg:       cfg,
	}
	a.unbind = preferences.Bind(manager, theme, localizer)

	log.Info().
		Str("backend_mode", cfg.Backend.Mode).
		Bool("cloud_model", cfg.Model.GeminiAPIKey != "").
		Bool("prefer_cloud", cfg.Model.PreferCloud).
		Msg("Application initialized")

	return a, nil
}

func newGateway(cfg *config.Config) services.BackendGateway {
	if cfg.Backend.Mode == "remote" {
		return services.NewRemoteGateway(cfg.Backend.BaseURL, nil)
	}

	svc := backend.NewService(
		backend.NewMemoryStore(),
		backend.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL),
		backend.NewMemoryFeedBroker(),
		nil,
		nil,
		backend.Options{
			MinPasswordEntropy: cfg.Backend.MinPasswordEntropy,
			SeedDemoData:       cfg.Backend.SeedDemoData,
		},
	)
	return services.NewLocalGateway(svc, cfg.Backend.DemoActivityInterval)
}

func newModel(ctx context.Context, cfg *config.Config) (services.ConversationalModel, error) {
	local := services.NewLocalModel()
	if cfg.Model.GeminiAPIKey == "" {
		return local, nil
	}

	gemini, err := services.NewGeminiModel(ctx, cfg.Model.GeminiAPIKey, cfg.Model.GeminiModel, cfg.Model.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	if cfg.Model.PreferCloud {
		return services.NewFallbackModel(gemini, local), nil
	}
	return services.NewFallbackModel(local, gemini), nil
}

// Start restores a previous session and loads the backend status
func (a *App) Start(ctx context.Context) {
	a.Session.Start(ctx)
}

// NewPractice starts a conversation practice over the app's services
func (a *App) NewPractice(topic string) *conversation.Practice {
	return conversation.NewPractice(
		a.Services.Model,
		a.Services.Recognizer,
		a.Services.TTS,
		a.Session,
		a.Localizer,
		conversation.Options{
			Model:       a.cfg.Model.Local,
			Speech:      services.SpeechOptions{Language: a.cfg.Speech.Language, Rate: a.cfg.Speech.Rate},
			Recognition: services.RecognitionOptions{Language: a.cfg.Speech.Language},
			Topic:       topic,
		},
	)
}

// Close releases the session manager
func (a *App) Close() {
	a.unbind()
	a.Session.Close()
}
