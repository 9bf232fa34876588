package services

import (
	"context"
	"errors"

	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
)

// FallbackModel prefers the primary model and falls back to the secondary
// when the primary is not ready or fails.
type FallbackModel struct {
	primary  ConversationalModel
	fallback ConversationalModel
}

// NewFallbackModel combines a primary and a fallback model
func NewFallbackModel(primary, fallback ConversationalModel) *FallbackModel {
	return &FallbackModel{primary: primary, fallback: fallback}
}

// Primary returns the model asked first
func (m *FallbackModel) Primary() ConversationalModel {
	return m.primary
}

// IsReady reports whether either model can serve requests
func (m *FallbackModel) IsReady() bool {
	return m.primary.IsReady() || m.fallback.IsReady()
}

// LoadModel loads both models. It fails only when neither could be loaded.
func (m *FallbackModel) LoadModel(ctx context.Context, cfg models.LocalModelConfig) error {
	primaryErr := m.primary.LoadModel(ctx, cfg)
	if primaryErr != nil {
		log.Warn().Err(primaryErr).Msg("Primary model failed to load")
	}
	fallbackErr := m.fallback.LoadModel(ctx, cfg)
	if fallbackErr != nil {
		log.Warn().Err(fallbackErr).Msg("Fallback model failed to load")
	}
	if primaryErr != nil && fallbackErr != nil {
		return errors.Join(primaryErr, fallbackErr)
	}
	return nil
}

// GenerateReply asks the primary model and retries on the fallback
func (m *FallbackModel) GenerateReply(ctx context.Context, req models.AIRequestContext) (*models.AIResponse, error) {
	if !m.IsReady() {
		return nil, models.ErrModelNotLoaded
	}

	if m.primary.IsReady() {
		resp, err := m.primary.GenerateReply(ctx, req)
		if err == nil {
			return resp, nil
		}
		log.Warn().Err(err).Msg("Primary model failed, using fallback")
	}

	resp, err := m.fallback.GenerateReply(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.DidUseFallbackModel = true
	return resp, nil
}

// EvaluatePronunciation scores the transcript, falling back on failure
func (m *FallbackModel) EvaluatePronunciation(ctx context.Context, transcript, reference string) (*models.SpeechAssessment, error) {
	if m.primary.IsReady() {
		if a, err := m.primary.EvaluatePronunciation(ctx, transcript, reference); err == nil {
			return a, nil
		}
	}
	return m.fallback.EvaluatePronunciation(ctx, transcript, reference)
}

// EvaluateGrammar lists grammar mistakes, falling back on failure
func (m *FallbackModel) EvaluateGrammar(ctx context.Context, text, referenceContext string) ([]models.Mistake, error) {
	if m.primary.IsReady() {
		if mistakes, err := m.primary.EvaluateGrammar(ctx, text, referenceContext); err == nil {
			return mistakes, nil
		}
	}
	return m.fallback.EvaluateGrammar(ctx, text, referenceContext)
}

// GenerateFillInBlankQuestions builds gap exercises, falling back on failure
func (m *FallbackModel) GenerateFillInBlankQuestions(ctx context.Context, text string, count int) ([]models.QuizQuestion, error) {
	if m.primary.IsReady() {
		if questions, err := m.primary.GenerateFillInBlankQuestions(ctx, text, count); err == nil {
			return questions, nil
		}
	}
	return m.fallback.GenerateFillInBlankQuestions(ctx, text, count)
}
