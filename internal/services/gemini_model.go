package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lingo-core/internal/models"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const defaultEvaluationCacheSize = 256

var errEmptyCompletion = errors.New("model returned no content")

// contentGenerator produces a JSON document for a prompt
type contentGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

// GenerateJSON sends prompt and input and returns the JSON response text
func (g *genaiGenerator) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt input: %w", err)
	}
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errEmptyCompletion
	}
	return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
}

// GeminiModel is the cloud fallback model. Evaluation results are cached by input.
type GeminiModel struct {
	gen   contentGenerator
	cache *lru.Cache[string, json.RawMessage]

	mu    sync.RWMutex
	ready bool
}

// NewGeminiModel creates a Gemini-backed model
func NewGeminiModel(ctx context.Context, apiKey, model string, cacheSize int) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiModel(&genaiGenerator{client: client, model: model}, cacheSize)
}

func newGeminiModel(gen contentGenerator, cacheSize int) (*GeminiModel, error) {
	if cacheSize <= 0 {
		cacheSize = defaultEvaluationCacheSize
	}
	cache, err := lru.New[string, json.RawMessage](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation cache: %w", err)
	}
	return &GeminiModel{gen: gen, cache: cache}, nil
}

// IsReady reports whether LoadModel succeeded
func (m *GeminiModel) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// LoadModel marks the model ready; the weights live on the provider side
func (m *GeminiModel) LoadModel(ctx context.Context, cfg models.LocalModelConfig) error {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return nil
}

const replyPrompt = `You are a friendly language tutor. Continue the conversation below.
Reply in the learner's target language at their level, correct their last message
and ask one follow-up question. Respond with JSON:
{"reply": string, "follow_up_question": string, "corrections": [{"mistake_type": "grammar|vocabulary|pronunciation|spelling", "expected_answer": string, "user_answer": string, "explanation": string}]}`

// GenerateReply asks Gemini for a tutor reply
func (m *GeminiModel) GenerateReply(ctx context.Context, req models.AIRequestContext) (*models.AIResponse, error) {
	if !m.IsReady() {
		return nil, models.ErrModelNotLoaded
	}

	input := map[string]any{
		"topic":       req.Topic,
		"focus":       req.Focus,
		"level":       req.UserProfile.Level,
		"prompt_hint": req.PromptHint,
		"history":     req.ConversationHistory,
	}

	started := time.Now()
	raw, err := m.gen.GenerateJSON(ctx, replyPrompt, input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	var resp models.AIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	resp.Corrections = withMistakeIDs(resp.Corrections, "conversation")
	resp.DidUseFallbackModel = true
	resp.LatencyMs = time.Since(started).Milliseconds()

	log.Debug().
		Int64("latency_ms", resp.LatencyMs).
		Int("corrections", len(resp.Corrections)).
		Msg("Gemini reply generated")

	return &resp, nil
}

const pronunciationPrompt = `Compare the transcript of what the learner said with the reference sentence.
Score each reference word from 0 to 1 and give short feedback. Respond with JSON:
{"word_scores": [{"word": string, "score": number}], "overall_score": number, "feedback": string}`

// EvaluatePronunciation compares transcript with reference, cached per pair
func (m *GeminiModel) EvaluatePronunciation(ctx context.Context, transcript, reference string) (*models.SpeechAssessment, error) {
	var assessment models.SpeechAssessment
	input := map[string]string{"transcript": transcript, "reference": reference}
	if err := m.cached(ctx, "pronunciation", pronunciationPrompt, input, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

const grammarPrompt = `List the grammar mistakes in the learner's text. Use the reference context when given.
Respond with JSON: [{"mistake_type": "grammar|vocabulary|spelling", "expected_answer": string, "user_answer": string, "explanation": string}]`

// EvaluateGrammar asks Gemini for grammar mistakes, cached per input
func (m *GeminiModel) EvaluateGrammar(ctx context.Context, text, referenceContext string) ([]models.Mistake, error) {
	if strings.TrimSpace(text) == "" {
		return []models.Mistake{}, nil
	}

	var mistakes []models.Mistake
	input := map[string]string{"text": text, "reference_context": referenceContext}
	if err := m.cached(ctx, "grammar", grammarPrompt, input, &mistakes); err != nil {
		return nil, err
	}
	return withMistakeIDs(mistakes, "ad-hoc"), nil
}

const fillInBlankPrompt = `Create fill-in-the-blank questions from the text. Replace one word per question with ___.
Respond with JSON: [{"prompt": string, "correct_answers": [string], "explanation": string}]`

// GenerateFillInBlankQuestions asks Gemini for gap exercises
func (m *GeminiModel) GenerateFillInBlankQuestions(ctx context.Context, text string, count int) ([]models.QuizQuestion, error) {
	if count <= 0 {
		return []models.QuizQuestion{}, nil
	}

	raw, err := m.gen.GenerateJSON(ctx, fillInBlankPrompt, map[string]any{"text": text, "count": count})
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	var questions []models.QuizQuestion
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	for i := range questions {
		questions[i].ID = uuid.New().String()
		questions[i].QuestionType = models.QuestionFillInBlank
	}
	return questions, nil
}

// cached runs an evaluation prompt unless the same input was evaluated before
func (m *GeminiModel) cached(ctx context.Context, kind, prompt string, input any, out any) error {
	key, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to encode %s input: %w", kind, err)
	}
	cacheKey := kind + ":" + string(key)

	raw, ok := m.cache.Get(cacheKey)
	if !ok {
		raw, err = m.gen.GenerateJSON(ctx, prompt, input)
		if err != nil {
			return fmt.Errorf("failed to evaluate %s: %w", kind, err)
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s evaluation: %w", kind, err)
	}
	if !ok {
		m.cache.Add(cacheKey, raw)
	}
	return nil
}

func withMistakeIDs(mistakes []models.Mistake, questionID string) []models.Mistake {
	if mistakes == nil {
		return []models.Mistake{}
	}
	for i := range mistakes {
		if mistakes[i].ID == "" {
			mistakes[i].ID = uuid.New().String()
		}
		if mistakes[i].QuestionID == "" {
			mistakes[i].QuestionID = questionID
		}
	}
	return mistakes
}
