package services

import (
	"context"
	"fmt"
	"sync"

	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
)

// SpeechEngine is the platform speech recognition binding. It reports
// events through the emit func passed to Attach.
type SpeechEngine interface {
	IsAvailable(ctx context.Context) (bool, error)
	Start(ctx context.Context, opts RecognitionOptions) error
	Stop(ctx context.Context) error
	Attach(emit func(RecognitionEvent))
}

// PlatformSpeechRecognizer fans engine events out to subscribers. A nil
// engine means no platform support is linked.
type PlatformSpeechRecognizer struct {
	engine   SpeechEngine
	defaults RecognitionOptions
	warnOnce sync.Once

	mu        sync.Mutex
	recording bool
	listeners map[uint64]RecognitionListener
	nextID    uint64
}

// NewPlatformSpeechRecognizer creates a recognizer over engine, which may be nil
func NewPlatformSpeechRecognizer(engine SpeechEngine, defaults RecognitionOptions) *PlatformSpeechRecognizer {
	r := &PlatformSpeechRecognizer{
		engine:    engine,
		defaults:  defaults,
		listeners: make(map[uint64]RecognitionListener),
	}
	if engine != nil {
		engine.Attach(r.dispatch)
	}
	return r
}

func (r *PlatformSpeechRecognizer) unavailable() bool {
	if r.engine != nil {
		return false
	}
	r.warnOnce.Do(func() {
		log.Warn().Msg("Speech recognition engine is not linked, recognition disabled")
	})
	return true
}

// IsAvailable asks the engine whether recognition can run
func (r *PlatformSpeechRecognizer) IsAvailable(ctx context.Context) bool {
	if r.unavailable() {
		return false
	}
	ok, err := r.engine.IsAvailable(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Speech recognition availability check failed")
		return false
	}
	return ok
}

// Start begins a recording session. Starting while already recording returns
// models.ErrRecognitionActive.
func (r *PlatformSpeechRecognizer) Start(ctx context.Context, opts RecognitionOptions) error {
	if r.unavailable() {
		return nil
	}

	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return models.ErrRecognitionActive
	}
	r.recording = true
	r.mu.Unlock()

	if opts.Language == "" {
		opts.Language = r.defaults.Language
	}
	if opts.MaxAlternatives == 0 {
		opts.MaxAlternatives = r.defaults.MaxAlternatives
	}

	if err := r.engine.Start(ctx, opts); err != nil {
		r.setRecording(false)
		log.Warn().Err(err).Msg("Failed to start speech recognition")
		r.dispatch(RecognitionEvent{Type: RecognitionError, Error: err.Error()})
		return nil
	}
	return nil
}

// Stop ends the current recording session
func (r *PlatformSpeechRecognizer) Stop(ctx context.Context) error {
	if r.unavailable() {
		return nil
	}
	if err := r.engine.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop speech recognition")
	}
	r.setRecording(false)
	return nil
}

// IsRecording reports whether a recording session is active
func (r *PlatformSpeechRecognizer) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Subscribe registers a listener until the returned func is called
func (r *PlatformSpeechRecognizer) Subscribe(listener RecognitionListener) func() {
	if r.unavailable() {
		return func() {}
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = listener
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *PlatformSpeechRecognizer) setRecording(recording bool) {
	r.mu.Lock()
	r.recording = recording
	r.mu.Unlock()
}

// dispatch tracks the recording state and forwards event to every listener
func (r *PlatformSpeechRecognizer) dispatch(event RecognitionEvent) {
	r.mu.Lock()
	switch event.Type {
	case RecognitionStart:
		r.recording = true
	case RecognitionStop, RecognitionError:
		r.recording = false
	case RecognitionResult:
		if event.IsFinal {
			r.recording = false
		}
	}
	listeners := make([]RecognitionListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// String formats the event for logs
func (e RecognitionEvent) String() string {
	switch e.Type {
	case RecognitionError:
		return fmt.Sprintf("error(%s)", e.Error)
	case RecognitionResult:
		return fmt.Sprintf("result(%q, final=%t)", e.Transcript, e.IsFinal)
	default:
		return string(e.Type)
	}
}
