package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"lingo-core/internal/models"
	"lingo-core/internal/preferences"
	"lingo-core/internal/services"
	"lingo-core/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const guestID = "guest"

// Options configure a practice conversation
type Options struct {
	Model       models.LocalModelConfig
	Speech      services.SpeechOptions
	Recognition services.RecognitionOptions
	Focus       models.LearningFocus
	Topic       string
}

// Practice runs a spoken conversation with the tutor model
type Practice struct {
	model      services.ConversationalModel
	recognizer services.SpeechRecognizer
	tts        services.TextToSpeech
	sessions   *session.Manager
	localizer  *preferences.Localizer
	opts       Options
	now        func() time.Time

	mu          sync.Mutex
	history     []models.ConversationTurn
	input       string
	recording   bool
	sending     bool
	unsubscribe func()
}

// NewPractice creates a practice conversation. sessions and localizer may be nil.
func NewPractice(
	model services.ConversationalModel,
	recognizer services.SpeechRecognizer,
	tts services.TextToSpeech,
	sessions *session.Manager,
	localizer *preferences.Localizer,
	opts Options,
) *Practice {
	if opts.Focus == "" {
		opts.Focus = models.FocusSpeaking
	}
	p := &Practice{
		model:      model,
		recognizer: recognizer,
		tts:        tts,
		sessions:   sessions,
		localizer:  localizer,
		opts:       opts,
		now:        time.Now,
		history:    []models.ConversationTurn{},
	}
	p.unsubscribe = recognizer.Subscribe(p.onRecognition)
	return p
}

// Prepare loads the model when needed and reports whether speech input is available
func (p *Practice) Prepare(ctx context.Context) (bool, error) {
	if !p.model.IsReady() {
		if err := p.model.LoadModel(ctx, p.opts.Model); err != nil {
			log.Warn().Err(err).Str("model", p.opts.Model.ModelName).Msg("Model load failed")
			return false, fmt.Errorf("failed to load model: %w", err)
		}
	}

	available := p.recognizer.IsAvailable(ctx)
	if !available {
		log.Warn().Msg("Speech recognition not available on this device")
	}
	return available, nil
}

func (p *Practice) onRecognition(event services.RecognitionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case services.RecognitionResult:
		p.input = event.Transcript
		if event.IsFinal {
			p.recording = false
		}
	case services.RecognitionStart:
		p.recording = true
	case services.RecognitionStop, services.RecognitionError:
		p.recording = false
	}
}

// Input returns the pending user input
func (p *Practice) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// SetInput replaces the pending user input
func (p *Practice) SetInput(text string) {
	p.mu.Lock()
	p.input = text
	p.mu.Unlock()
}

// History returns a copy of the conversation so far
func (p *Practice) History() []models.ConversationTurn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ConversationTurn{}, p.history...)
}

// IsRecording reports whether speech input is being captured
func (p *Practice) IsRecording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// IsSending reports whether a reply is being generated
func (p *Practice) IsSending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sending
}

// SendPending sends the pending input
func (p *Practice) SendPending(ctx context.Context) (*models.AIResponse, error) {
	return p.Send(ctx, p.Input())
}

// Send adds a user turn, asks the model for a reply and speaks it. Blank input
// or a send already in flight is ignored and returns nil.
func (p *Practice) Send(ctx context.Context, input string) (*models.AIResponse, error) {
	utterance := strings.TrimSpace(input)

	p.mu.Lock()
	if utterance == "" || p.sending {
		p.mu.Unlock()
		return nil, nil
	}
	p.sending = true
	p.history = append(p.history, models.ConversationTurn{
		ID:        uuid.New().String(),
		Speaker:   models.SpeakerUser,
		Utterance: utterance,
		Timestamp: p.now(),
	})
	history := append([]models.ConversationTurn{}, p.history...)
	p.input = ""
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.sending = false
		p.mu.Unlock()
	}()

	profile := p.profile()
	response, err := p.model.GenerateReply(ctx, models.AIRequestContext{
		SessionID:           fmt.Sprintf("conversation_%s", profile.ID),
		UserProfile:         profile,
		ConversationHistory: history,
		Focus:               p.opts.Focus,
		Topic:               p.opts.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	p.mu.Lock()
	p.history = append(p.history, models.ConversationTurn{
		ID:        uuid.New().String(),
		Speaker:   models.SpeakerAssistant,
		Utterance: response.Reply,
		Timestamp: p.now(),
	})
	p.mu.Unlock()

	if err := p.tts.Speak(ctx, response.Reply, p.opts.Speech); err != nil {
		log.Warn().Err(err).Msg("Failed to speak reply")
	}

	return response, nil
}

// profile is the signed-in user or a guest in the current UI language
func (p *Practice) profile() models.UserProfile {
	if p.sessions != nil {
		if s := p.sessions.State(); s.Session != nil {
			return s.Session.User
		}
	}

	name := "Guest"
	language := models.LanguageCzech
	if p.localizer != nil {
		name = p.localizer.T("profile_guest_name", name)
		language = p.localizer.Language()
	}
	return models.UserProfile{
		ID:           guestID,
		DisplayName:  name,
		Level:        models.LevelB1,
		Achievements: []models.Achievement{},
		Preferences: models.UserPreferences{
			Theme:    models.ThemeLight,
			Language: language,
		},
	}
}

// ToggleRecording stops an active recording or starts a new one
func (p *Practice) ToggleRecording(ctx context.Context) error {
	if p.IsRecording() {
		if err := p.recognizer.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}
		p.mu.Lock()
		p.recording = false
		p.mu.Unlock()
		return nil
	}

	opts := p.opts.Recognition
	opts.InterimResults = true
	if err := p.recognizer.Start(ctx, opts); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	return nil
}

// Close stops listening to the recognizer
func (p *Practice) Close() {
	p.unsubscribe()
}
