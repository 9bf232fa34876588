package models

import "time"

// Quantization of the on-device model weights
type Quantization string

const (
	Quantization4Bit  Quantization = "4bit"
	Quantization8Bit  Quantization = "8bit"
	Quantization16Bit Quantization = "16bit"
)

// LocalModelConfig describes the conversational model to load
type LocalModelConfig struct {
	ModelName        string       `json:"model_name" yaml:"model_name"`
	ModelSizeMB      int          `json:"model_size_mb" yaml:"model_size_mb"`
	Quantization     Quantization `json:"quantization" yaml:"quantization"`
	MaxContextTokens int          `json:"max_context_tokens" yaml:"max_context_tokens"`
	Temperature      float64      `json:"temperature" yaml:"temperature"`
	TopP             float64      `json:"top_p" yaml:"top_p"`
}

// Speaker of a conversation turn
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// ConversationTurn is one utterance in a practice conversation
type ConversationTurn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Utterance string    `json:"utterance"`
	Timestamp time.Time `json:"timestamp"`
}

// AIRequestContext is the input to reply generation
type AIRequestContext struct {
	SessionID           string             `json:"session_id"`
	UserProfile         UserProfile        `json:"user_profile"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	Focus               LearningFocus      `json:"focus"`
	Topic               string             `json:"topic,omitempty"`
	PromptHint          string             `json:"prompt_hint,omitempty"`
}

// LastUserUtterance returns the most recent user turn, or "" if none
func (c AIRequestContext) LastUserUtterance() string {
	for i := len(c.ConversationHistory) - 1; i >= 0; i-- {
		if c.ConversationHistory[i].Speaker == SpeakerUser {
			return c.ConversationHistory[i].Utterance
		}
	}
	return ""
}

// MistakeType classifies a learner mistake
type MistakeType string

const (
	MistakeGrammar       MistakeType = "grammar"
	MistakeVocabulary    MistakeType = "vocabulary"
	MistakePronunciation MistakeType = "pronunciation"
	MistakeSpelling      MistakeType = "spelling"
)

// Mistake is a correction produced by evaluation
type Mistake struct {
	ID             string      `json:"id"`
	QuestionID     string      `json:"question_id"`
	MistakeType    MistakeType `json:"mistake_type"`
	ExpectedAnswer string      `json:"expected_answer"`
	UserAnswer     string      `json:"user_answer"`
	Explanation    string      `json:"explanation"`
}

// AIResponse is the model's reply
type AIResponse struct {
	Reply               string    `json:"reply"`
	Corrections         []Mistake `json:"corrections,omitempty"`
	FollowUpQuestion    string    `json:"follow_up_question,omitempty"`
	DidUseFallbackModel bool      `json:"did_use_fallback_model"`
	LatencyMs           int64     `json:"latency_ms"`
}

// QuestionType of a quiz question
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionOrdering       QuestionType = "ordering"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// QuizQuestion is a generated exercise question
type QuizQuestion struct {
	ID             string       `json:"id"`
	QuestionType   QuestionType `json:"question_type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	CorrectAnswers []string     `json:"correct_answers"`
	Explanation    string       `json:"explanation,omitempty"`
}

// PhonemeScore scores a single phoneme (0-1)
type PhonemeScore struct {
	Phoneme string  `json:"phoneme"`
	Score   float64 `json:"score"`
}

// WordScore scores a single word (0-1)
type WordScore struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// SpeechAssessment is the result of pronunciation evaluation
type SpeechAssessment struct {
	PhonemeBreakdown []PhonemeScore `json:"phoneme_breakdown,omitempty"`
	WordScores       []WordScore    `json:"word_scores,omitempty"`
	OverallScore     float64        `json:"overall_score"`
	Feedback         string         `json:"feedback"`
}
