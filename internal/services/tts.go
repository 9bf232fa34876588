package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// SpeechSynthesizer is the platform text-to-speech binding
type SpeechSynthesizer interface {
	Configure(ctx context.Context, opts SpeechOptions) error
	Speak(ctx context.Context, text string, opts SpeechOptions) error
	Stop(ctx context.Context) error
	IsSpeaking(ctx context.Context) (bool, error)
}

// PlatformTextToSpeech merges configured defaults into every call. A nil
// synthesizer means no platform support is linked.
type PlatformTextToSpeech struct {
	synth    SpeechSynthesizer
	warnOnce sync.Once

	mu       sync.RWMutex
	defaults SpeechOptions
}

// NewPlatformTextToSpeech creates a TTS service over synth, which may be nil
func NewPlatformTextToSpeech(synth SpeechSynthesizer, defaults SpeechOptions) *PlatformTextToSpeech {
	return &PlatformTextToSpeech{synth: synth, defaults: defaults}
}

func (t *PlatformTextToSpeech) unavailable() bool {
	if t.synth != nil {
		return false
	}
	t.warnOnce.Do(func() {
		log.Warn().Msg("Text-to-speech engine is not linked, speech output disabled")
	})
	return true
}

// Configure replaces the non-zero default options
func (t *PlatformTextToSpeech) Configure(ctx context.Context, opts SpeechOptions) error {
	t.mu.Lock()
	t.defaults = mergeSpeechOptions(t.defaults, opts)
	merged := t.defaults
	t.mu.Unlock()

	if t.unavailable() {
		return nil
	}
	if err := t.synth.Configure(ctx, merged); err != nil {
		log.Warn().Err(err).Msg("Failed to configure text-to-speech")
	}
	return nil
}

// Speak says text with the defaults merged into opts
func (t *PlatformTextToSpeech) Speak(ctx context.Context, text string, opts SpeechOptions) error {
	if t.unavailable() {
		log.Debug().Str("text", text).Msg("Would speak")
		return nil
	}

	t.mu.RLock()
	merged := mergeSpeechOptions(t.defaults, opts)
	t.mu.RUnlock()

	if err := t.synth.Speak(ctx, text, merged); err != nil {
		log.Warn().Err(err).Msg("Failed to speak")
	}
	return nil
}

// SpeakAsync speaks in the background
func (t *PlatformTextToSpeech) SpeakAsync(ctx context.Context, text string, opts SpeechOptions) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- t.Speak(ctx, text, opts)
		close(done)
	}()
	return done
}

// Stop interrupts speech in progress
func (t *PlatformTextToSpeech) Stop(ctx context.Context) error {
	if t.unavailable() {
		return nil
	}
	if err := t.synth.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop speech")
	}
	return nil
}

// IsSpeaking reports whether speech is in progress
func (t *PlatformTextToSpeech) IsSpeaking(ctx context.Context) bool {
	if t.unavailable() {
		return false
	}
	speaking, err := t.synth.IsSpeaking(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to query speech state")
		return false
	}
	return speaking
}

// mergeSpeechOptions overlays the non-zero fields of override on base
func mergeSpeechOptions(base, override SpeechOptions) SpeechOptions {
	if override.Voice != "" {
		base.Voice = override.Voice
	}
	if override.Rate != 0 {
		base.Rate = override.Rate
	}
	if override.Pitch != 0 {
		base.Pitch = override.Pitch
	}
	if override.Language != "" {
		base.Language = override.Language
	}
	return base
}
