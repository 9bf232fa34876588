package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"lingo-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func practiceRequest() models.AIRequestContext {
	return models.AIRequestContext{
		SessionID: "s1",
		Topic:     "Travel",
		ConversationHistory: []models.ConversationTurn{
			{Speaker: models.SpeakerUser, Utterance: "I am learning since two years"},
			{Speaker: models.SpeakerAssistant, Utterance: "Nice!"},
		},
	}
}

func TestLocalModelRequiresLoad(t *testing.T) {
	ctx := context.Background()
	m := NewLocalModel()

	assert.False(t, m.IsReady())
	_, err := m.GenerateReply(ctx, practiceRequest())
	assert.ErrorIs(t, err, models.ErrModelNotLoaded)

	require.NoError(t, m.LoadModel(ctx, models.LocalModelConfig{ModelName: "tiny"}))
	assert.True(t, m.IsReady())
	assert.Equal(t, "tiny", m.Config().ModelName)

	resp, err := m.GenerateReply(ctx, practiceRequest())
	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "Travel")
	assert.Contains(t, resp.Reply, "I am learning since two years")
	assert.False(t, resp.DidUseFallbackModel)
	assert.Equal(t, int64(120), resp.LatencyMs)
	assert.NotEmpty(t, resp.FollowUpQuestion)
}

func TestLocalModelPronunciation(t *testing.T) {
	m := NewLocalModel()
	ctx := context.Background()

	a, err := m.EvaluatePronunciation(ctx, "", "Hello world")
	require.NoError(t, err)
	assert.Zero(t, a.OverallScore)

	a, err = m.EvaluatePronunciation(ctx, "hello there", "Hello, world!")
	require.NoError(t, err)
	require.Len(t, a.WordScores, 2)
	assert.Equal(t, 1.0, a.WordScores[0].Score)
	assert.Equal(t, 0.0, a.WordScores[1].Score)
	assert.InDelta(t, 0.5, a.OverallScore, 1e-9)
}

func TestLocalModelGrammar(t *testing.T) {
	m := NewLocalModel()
	ctx := context.Background()

	mistakes, err := m.EvaluateGrammar(ctx, "  ", "")
	require.NoError(t, err)
	assert.Empty(t, mistakes)

	mistakes, err = m.EvaluateGrammar(ctx, "I learn since two years", "")
	require.NoError(t, err)
	require.Len(t, mistakes, 1)
	assert.Equal(t, models.MistakeGrammar, mistakes[0].MistakeType)
	assert.Equal(t, "I learn since two years", mistakes[0].UserAnswer)
}

func TestLocalModelFillInBlank(t *testing.T) {
	m := NewLocalModel()
	ctx := context.Background()

	questions, err := m.GenerateFillInBlankQuestions(ctx, "the cat sat on the mat", 3)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	// tokens 0, 3 and 6 % 6 = 0
	assert.Equal(t, []string{"the"}, questions[0].CorrectAnswers)
	assert.Equal(t, "___ cat sat on the mat", questions[0].Prompt)
	assert.Equal(t, []string{"on"}, questions[1].CorrectAnswers)
	assert.Equal(t, "the cat sat ___ the mat", questions[1].Prompt)
	assert.Equal(t, []string{"the"}, questions[2].CorrectAnswers)
	assert.Equal(t, models.QuestionFillInBlank, questions[0].QuestionType)

	questions, err = m.GenerateFillInBlankQuestions(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"word"}, questions[0].CorrectAnswers)

	questions, err = m.GenerateFillInBlankQuestions(ctx, "abc", 0)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	respond func(prompt string) (string, error)
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out, err := f.respond(prompt)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func newFakeGemini(t *testing.T) (*GeminiModel, *fakeGenerator) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "You are a friendly"):
			return `{"reply":"Ahoj!","follow_up_question":"Kam jedeš?","corrections":[{"mistake_type":"grammar","expected_answer":"a","user_answer":"b"}]}`, nil
		case strings.HasPrefix(prompt, "List the grammar"):
			return `[{"mistake_type":"grammar","expected_answer":"I have been","user_answer":"I am"}]`, nil
		case strings.HasPrefix(prompt, "Compare"):
			return `{"word_scores":[{"word":"hello","score":0.8}],"overall_score":0.8,"feedback":"ok"}`, nil
		default:
			return `[{"prompt":"the ___ sat","correct_answers":["cat"]},{"prompt":"___ cat","correct_answers":["the"]}]`, nil
		}
	}}
	m, err := newGeminiModel(gen, 8)
	require.NoError(t, err)
	return m, gen
}

func TestGeminiModel(t *testing.T) {
	ctx := context.Background()
	m, gen := newFakeGemini(t)

	_, err := m.GenerateReply(ctx, practiceRequest())
	assert.ErrorIs(t, err, models.ErrModelNotLoaded)

	require.NoError(t, m.LoadModel(ctx, models.LocalModelConfig{}))
	resp, err := m.GenerateReply(ctx, practiceRequest())
	require.NoError(t, err)
	assert.Equal(t, "Ahoj!", resp.Reply)
	assert.True(t, resp.DidUseFallbackModel)
	require.Len(t, resp.Corrections, 1)
	assert.NotEmpty(t, resp.Corrections[0].ID)

	for i := 0; i < 3; i++ {
		mistakes, err := m.EvaluateGrammar(ctx, "I am learning", "")
		require.NoError(t, err)
		require.Len(t, mistakes, 1)
	}
	assessment, err := m.EvaluatePronunciation(ctx, "hello", "hello")
	require.NoError(t, err)
	assert.Equal(t, 0.8, assessment.OverallScore)
	// one reply, one grammar evaluation served twice from cache, one pronunciation
	assert.Equal(t, 3, gen.calls)

	questions, err := m.GenerateFillInBlankQuestions(ctx, "the cat sat", 1)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, models.QuestionFillInBlank, questions[0].QuestionType)
}

func TestFallbackModel(t *testing.T) {
	ctx := context.Background()
	local := NewLocalModel()
	gemini, _ := newFakeGemini(t)
	m := NewFallbackModel(local, gemini)

	assert.False(t, m.IsReady())
	_, err := m.GenerateReply(ctx, practiceRequest())
	assert.ErrorIs(t, err, models.ErrModelNotLoaded)

	require.NoError(t, gemini.LoadModel(ctx, models.LocalModelConfig{}))
	resp, err := m.GenerateReply(ctx, practiceRequest())
	require.NoError(t, err)
	assert.True(t, resp.DidUseFallbackModel)

	require.NoError(t, m.LoadModel(ctx, models.LocalModelConfig{ModelName: "tiny"}))
	resp, err = m.GenerateReply(ctx, practiceRequest())
	require.NoError(t, err)
	assert.False(t, resp.DidUseFallbackModel)
}

type failingModel struct{ *LocalModel }

func (failingModel) GenerateReply(ctx context.Context, req models.AIRequestContext) (*models.AIResponse, error) {
	return nil, errors.New("runtime crashed")
}

func TestFallbackModelOnPrimaryFailure(t *testing.T) {
	ctx := context.Background()
	primary := failingModel{NewLocalModel()}
	fallback := NewLocalModel()
	m := NewFallbackModel(primary, fallback)
	require.NoError(t, m.LoadModel(ctx, models.LocalModelConfig{}))

	resp, err := m.GenerateReply(ctx, practiceRequest())
	require.NoError(t, err)
	assert.True(t, resp.DidUseFallbackModel)
}
