package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lingo-core/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const localReplyLatencyMs = 120

// LocalModel stands in for an on-device model runtime. Replies are canned and
// evaluations are heuristic.
type LocalModel struct {
	mu     sync.RWMutex
	ready  bool
	config models.LocalModelConfig
}

// NewLocalModel creates an unloaded local model
func NewLocalModel() *LocalModel {
	return &LocalModel{}
}

// IsReady reports whether LoadModel was called
func (m *LocalModel) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// LoadModel records the configuration and marks the model ready. Loading
// again replaces the configuration.
func (m *LocalModel) LoadModel(ctx context.Context, cfg models.LocalModelConfig) error {
	m.mu.Lock()
	m.config = cfg
	m.ready = true
	m.mu.Unlock()

	log.Info().
		Str("model", cfg.ModelName).
		Str("quantization", string(cfg.Quantization)).
		Msg("Local model loaded")
	return nil
}

// Config returns the configuration of the loaded model
func (m *LocalModel) Config() models.LocalModelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GenerateReply returns a canned reply echoing the last user utterance
func (m *LocalModel) GenerateReply(ctx context.Context, req models.AIRequestContext) (*models.AIResponse, error) {
	if !m.IsReady() {
		return nil, models.ErrModelNotLoaded
	}

	topic := req.Topic
	if topic == "" {
		topic = "conversation"
	}

	return &models.AIResponse{
		Reply:               fmt.Sprintf("Simulated reply on the topic %q. Your last sentence: %q", topic, req.LastUserUtterance()),
		Corrections:         []models.Mistake{},
		FollowUpQuestion:    "How would you describe the situation in other words?",
		DidUseFallbackModel: false,
		LatencyMs:           localReplyLatencyMs,
	}, nil
}

// EvaluatePronunciation scores each reference word by whether it appears in
// the transcript. The overall score is the mean word score.
func (m *LocalModel) EvaluatePronunciation(ctx context.Context, transcript, reference string) (*models.SpeechAssessment, error) {
	spoken := make(map[string]bool)
	for _, w := range normalizedWords(transcript) {
		spoken[w] = true
	}

	assessment := &models.SpeechAssessment{
		PhonemeBreakdown: []models.PhonemeScore{},
		WordScores:       []models.WordScore{},
	}
	if len(spoken) == 0 {
		assessment.Feedback = "No speech was captured."
		return assessment, nil
	}

	var total float64
	for _, w := range normalizedWords(reference) {
		score := 0.0
		if spoken[w] {
			score = 1.0
		}
		assessment.WordScores = append(assessment.WordScores, models.WordScore{Word: w, Score: score})
		total += score
	}
	if n := len(assessment.WordScores); n > 0 {
		assessment.OverallScore = total / float64(n)
	}

	switch {
	case assessment.OverallScore >= 0.9:
		assessment.Feedback = "Great pronunciation, keep it up."
	case assessment.OverallScore >= 0.5:
		assessment.Feedback = "Pronunciation is good, focus on sentence melody."
	default:
		assessment.Feedback = "Try again slowly and pronounce every word."
	}
	return assessment, nil
}

// EvaluateGrammar reports a single sample grammar mistake for non-empty text
func (m *LocalModel) EvaluateGrammar(ctx context.Context, text, referenceContext string) ([]models.Mistake, error) {
	if strings.TrimSpace(text) == "" {
		return []models.Mistake{}, nil
	}
	return []models.Mistake{
		{
			ID:             uuid.New().String(),
			QuestionID:     "ad-hoc",
			MistakeType:    models.MistakeGrammar,
			ExpectedAnswer: "I have been learning for two years.",
			UserAnswer:     text,
			Explanation:    "Use the present perfect continuous for an activity that continues up to now.",
		},
	}, nil
}

// GenerateFillInBlankQuestions blanks out every third token of text, wrapping around
func (m *LocalModel) GenerateFillInBlankQuestions(ctx context.Context, text string, count int) ([]models.QuizQuestion, error) {
	questions := []models.QuizQuestion{}
	if count <= 0 {
		return questions, nil
	}

	tokens := strings.Fields(text)
	for i := 0; i < count; i++ {
		missing := "word"
		if len(tokens) > 0 {
			missing = tokens[(i*3)%len(tokens)]
		}
		questions = append(questions, models.QuizQuestion{
			ID:             uuid.New().String(),
			QuestionType:   models.QuestionFillInBlank,
			Prompt:         strings.Replace(text, missing, "___", 1),
			CorrectAnswers: []string{missing},
		})
	}
	return questions, nil
}

func normalizedWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return strings.ContainsRune(".,!?;:\"'()", r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}
