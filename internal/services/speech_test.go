package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lingo-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeechEngine struct {
	emit     func(RecognitionEvent)
	startErr error
	lastOpts RecognitionOptions
}

func (e *fakeSpeechEngine) IsAvailable(ctx context.Context) (bool, error) { return true, nil }

func (e *fakeSpeechEngine) Start(ctx context.Context, opts RecognitionOptions) error {
	e.lastOpts = opts
	if e.startErr != nil {
		return e.startErr
	}
	e.emit(RecognitionEvent{Type: RecognitionStart})
	return nil
}

func (e *fakeSpeechEngine) Stop(ctx context.Context) error {
	e.emit(RecognitionEvent{Type: RecognitionStop})
	return nil
}

func (e *fakeSpeechEngine) Attach(emit func(RecognitionEvent)) { e.emit = emit }

func TestSpeechRecognizerWithoutEngine(t *testing.T) {
	ctx := context.Background()
	r := NewPlatformSpeechRecognizer(nil, RecognitionOptions{})

	assert.False(t, r.IsAvailable(ctx))
	assert.NoError(t, r.Start(ctx, RecognitionOptions{}))
	assert.NoError(t, r.Stop(ctx))
	unsubscribe := r.Subscribe(func(RecognitionEvent) { t.Fatal("unexpected event") })
	unsubscribe()
	assert.False(t, r.IsRecording())
}

func TestSpeechRecognizerEvents(t *testing.T) {
	ctx := context.Background()
	engine := &fakeSpeechEngine{}
	r := NewPlatformSpeechRecognizer(engine, RecognitionOptions{Language: "cs-CZ"})
	assert.True(t, r.IsAvailable(ctx))

	var (
		mu     sync.Mutex
		events []RecognitionEventType
	)
	unsubscribe := r.Subscribe(func(e RecognitionEvent) {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
	})

	require.NoError(t, r.Start(ctx, RecognitionOptions{}))
	assert.Equal(t, "cs-CZ", engine.lastOpts.Language)
	assert.True(t, r.IsRecording())
	assert.ErrorIs(t, r.Start(ctx, RecognitionOptions{}), models.ErrRecognitionActive)

	engine.emit(RecognitionEvent{Type: RecognitionResult, Transcript: "ahoj", IsFinal: false})
	assert.True(t, r.IsRecording())
	engine.emit(RecognitionEvent{Type: RecognitionResult, Transcript: "ahoj světe", IsFinal: true})
	assert.False(t, r.IsRecording())

	unsubscribe()
	require.NoError(t, r.Start(ctx, RecognitionOptions{}))
	require.NoError(t, r.Stop(ctx))

	assert.Equal(t, []RecognitionEventType{RecognitionStart, RecognitionResult, RecognitionResult}, events)
}

func TestSpeechRecognizerStartFailure(t *testing.T) {
	ctx := context.Background()
	engine := &fakeSpeechEngine{startErr: errors.New("microphone busy")}
	r := NewPlatformSpeechRecognizer(engine, RecognitionOptions{})

	var got RecognitionEvent
	r.Subscribe(func(e RecognitionEvent) { got = e })

	assert.NoError(t, r.Start(ctx, RecognitionOptions{}))
	assert.False(t, r.IsRecording())
	assert.Equal(t, RecognitionError, got.Type)
	assert.Equal(t, "microphone busy", got.Error)
}

type fakeSynth struct {
	mu       sync.Mutex
	spoken   []string
	lastOpts SpeechOptions
	speaking bool
}

func (s *fakeSynth) Configure(ctx context.Context, opts SpeechOptions) error { return nil }

func (s *fakeSynth) Speak(ctx context.Context, text string, opts SpeechOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	s.lastOpts = opts
	return nil
}

func (s *fakeSynth) Stop(ctx context.Context) error { return nil }

func (s *fakeSynth) IsSpeaking(ctx context.Context) (bool, error) { return s.speaking, nil }

func TestTextToSpeechWithoutEngine(t *testing.T) {
	ctx := context.Background()
	tts := NewPlatformTextToSpeech(nil, SpeechOptions{})

	assert.NoError(t, tts.Configure(ctx, SpeechOptions{Rate: 1.2}))
	assert.NoError(t, tts.Speak(ctx, "hello", SpeechOptions{}))
	assert.NoError(t, <-tts.SpeakAsync(ctx, "hello", SpeechOptions{}))
	assert.NoError(t, tts.Stop(ctx))
	assert.False(t, tts.IsSpeaking(ctx))
}

func TestTextToSpeechMergesOptions(t *testing.T) {
	ctx := context.Background()
	synth := &fakeSynth{speaking: true}
	tts := NewPlatformTextToSpeech(synth, SpeechOptions{Language: "en-US", Rate: 1})

	require.NoError(t, tts.Configure(ctx, SpeechOptions{Voice: "anna"}))
	require.NoError(t, <-tts.SpeakAsync(ctx, "Dobrý den", SpeechOptions{Language: "cs-CZ"}))

	assert.Equal(t, []string{"Dobrý den"}, synth.spoken)
	assert.Equal(t, SpeechOptions{Voice: "anna", Rate: 1, Language: "cs-CZ"}, synth.lastOpts)
	assert.True(t, tts.IsSpeaking(ctx))
}
