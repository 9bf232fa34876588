package services

import (
	"context"

	"lingo-core/internal/models"
)

// FeedListener is called for every friend activity pushed to the session
type FeedListener func(activity models.FriendActivity)

// BackendGateway is the client's view of the learning backend. Social calls
// made without a session return models.ErrNotAuthenticated.
type BackendGateway interface {
	GetStatus(ctx context.Context) (models.BackendStatus, error)
	// GetCurrentSession returns nil when nobody is signed in
	GetCurrentSession(ctx context.Context) (*models.AuthSession, error)
	// SignIn returns models.ErrAuthentication for invalid credentials
	SignIn(ctx context.Context, creds models.AuthCredentials) (*models.AuthSession, error)
	SignOut(ctx context.Context) error
	UpdatePreferences(ctx context.Context, prefs models.UserPreferences) (*models.UserPreferences, error)
	// FetchProgress returns nil when no progress was recorded yet
	FetchProgress(ctx context.Context) (*models.ProgressSnapshot, error)
	FetchFriends(ctx context.Context) ([]models.Friend, error)
	AddFriend(ctx context.Context, email string) (*models.Friend, error)
	FetchFriendFeed(ctx context.Context) ([]models.FriendActivity, error)
	SendDirectMessage(ctx context.Context, friendID, content string) (*models.DirectMessage, error)
	FetchMessageThreads(ctx context.Context) ([]models.MessageThread, error)
	// SubscribeToFriendFeed delivers activities asynchronously until the
	// returned func is called. The func is safe to call more than once.
	SubscribeToFriendFeed(ctx context.Context, listener FeedListener) (func(), error)
}

// ConversationalModel generates replies and evaluates learner output
type ConversationalModel interface {
	IsReady() bool
	LoadModel(ctx context.Context, cfg models.LocalModelConfig) error
	// GenerateReply returns models.ErrModelNotLoaded before LoadModel succeeded
	GenerateReply(ctx context.Context, req models.AIRequestContext) (*models.AIResponse, error)
	EvaluatePronunciation(ctx context.Context, transcript, reference string) (*models.SpeechAssessment, error)
	EvaluateGrammar(ctx context.Context, text, referenceContext string) ([]models.Mistake, error)
	GenerateFillInBlankQuestions(ctx context.Context, text string, count int) ([]models.QuizQuestion, error)
}

// RecognitionOptions tune a recording session
type RecognitionOptions struct {
	Language        string `json:"language,omitempty"`
	InterimResults  bool   `json:"interim_results,omitempty"`
	MaxAlternatives int    `json:"max_alternatives,omitempty"`
}

// RecognitionEventType discriminates recognition events
type RecognitionEventType string

const (
	RecognitionStart  RecognitionEventType = "start"
	RecognitionStop   RecognitionEventType = "stop"
	RecognitionError  RecognitionEventType = "error"
	RecognitionResult RecognitionEventType = "result"
)

// RecognitionEvent is one event of the recognition stream. Error is set for
// error events, Transcript and IsFinal for results.
type RecognitionEvent struct {
	Type       RecognitionEventType `json:"type"`
	Error      string               `json:"error,omitempty"`
	Transcript string               `json:"transcript,omitempty"`
	IsFinal    bool                 `json:"is_final,omitempty"`
}

// RecognitionListener receives recognition events
type RecognitionListener func(event RecognitionEvent)

// SpeechRecognizer turns speech into text. Without platform support every
// call degrades to a no-op.
type SpeechRecognizer interface {
	IsAvailable(ctx context.Context) bool
	Start(ctx context.Context, opts RecognitionOptions) error
	Stop(ctx context.Context) error
	Subscribe(listener RecognitionListener) func()
}

// SpeechOptions tune speech synthesis; zero values mean "use the default"
type SpeechOptions struct {
	Voice    string  `json:"voice,omitempty" yaml:"voice"`
	Rate     float64 `json:"rate,omitempty" yaml:"rate"`
	Pitch    float64 `json:"pitch,omitempty" yaml:"pitch"`
	Language string  `json:"language,omitempty" yaml:"language"`
}

// TextToSpeech speaks text aloud. Without platform support every call
// degrades to a no-op.
type TextToSpeech interface {
	Configure(ctx context.Context, opts SpeechOptions) error
	Speak(ctx context.Context, text string, opts SpeechOptions) error
	// SpeakAsync speaks in the background; the channel yields the result once
	SpeakAsync(ctx context.Context, text string, opts SpeechOptions) <-chan error
	Stop(ctx context.Context) error
	IsSpeaking(ctx context.Context) bool
}
