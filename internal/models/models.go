package models

import "time"

// ThemeMode is the user's colour scheme preference
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// Valid reports whether the mode is one of the known modes
func (m ThemeMode) Valid() bool {
	switch m {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// LanguageCode is the UI language
type LanguageCode string

const (
	LanguageCzech   LanguageCode = "cs"
	LanguageEnglish LanguageCode = "en"
)

// Valid reports whether the language is supported
func (l LanguageCode) Valid() bool {
	return l == LanguageCzech || l == LanguageEnglish
}

// AuthProvider identifies the sign-in flow
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderApple  AuthProvider = "apple"
	ProviderGoogle AuthProvider = "google"
)

// CEFRLevel is a language proficiency level
type CEFRLevel string

const (
	LevelA1 CEFRLevel = "A1"
	LevelA2 CEFRLevel = "A2"
	LevelB1 CEFRLevel = "B1"
	LevelB2 CEFRLevel = "B2"
	LevelC1 CEFRLevel = "C1"
	LevelC2 CEFRLevel = "C2"
)

// DailyReminder schedules the daily practice reminder
type DailyReminder struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
}

// UserPreferences holds app preferences synced with the backend
type UserPreferences struct {
	Theme         ThemeMode      `json:"theme"`
	Language      LanguageCode   `json:"language"`
	DailyReminder *DailyReminder `json:"daily_reminder,omitempty"`
}

// Validate checks that every field holds a supported value
func (p UserPreferences) Validate() error {
	if !p.Theme.Valid() {
		return invalidf("unknown theme %q", p.Theme)
	}
	if !p.Language.Valid() {
		return invalidf("unknown language %q", p.Language)
	}
	if r := p.DailyReminder; r != nil {
		if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
			return invalidf("reminder time %02d:%02d out of range", r.Hour, r.Minute)
		}
	}
	return nil
}

// Achievement is a badge earned by the user
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AchievedAt  time.Time `json:"achieved_at"`
}

// UserProfile represents the signed-in learner
type UserProfile struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	DisplayName    string          `json:"display_name"`
	AvatarURL      *string         `json:"avatar_url,omitempty"`
	NativeLanguage string          `json:"native_language,omitempty"`
	LearningGoal   string          `json:"learning_goal,omitempty"`
	Preferences    UserPreferences `json:"preferences"`
	Level          CEFRLevel       `json:"level"`
	StreakCount    int             `json:"streak_count"`
	Achievements   []Achievement   `json:"achievements"`
}

// AuthCredentials are passed to the gateway on sign-in
type AuthCredentials struct {
	Provider AuthProvider `json:"provider"`
	Token    string       `json:"token,omitempty"`
	Email    string       `json:"email,omitempty"`
	Password string       `json:"password,omitempty"`
}

// AuthSession is the active authentication session
type AuthSession struct {
	User         UserProfile `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken *string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
}

// BackendStatus is advisory reachability information
type BackendStatus struct {
	IsReachable bool       `json:"is_reachable"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
}

// LearningFocus is a skill area
type LearningFocus string

const (
	FocusGrammar    LearningFocus = "grammar"
	FocusVocabulary LearningFocus = "vocabulary"
	FocusListening  LearningFocus = "listening"
	FocusReading    LearningFocus = "reading"
	FocusSpeaking   LearningFocus = "speaking"
	FocusWriting    LearningFocus = "writing"
)

// ProgressSnapshot is a point-in-time rollup of the learner's progress
type ProgressSnapshot struct {
	UserID                string                `json:"user_id"`
	CollectedAt           time.Time             `json:"collected_at"`
	StreakCount           int                   `json:"streak_count"`
	TotalXP               int                   `json:"total_xp"`
	XPByFocus             map[LearningFocus]int `json:"xp_by_focus"`
	MasteredVocabulary    int                   `json:"mastered_vocabulary"`
	MasteredGrammarTopics int                   `json:"mastered_grammar_topics"`
}

// Friend is another learner in the user's friend list
type Friend struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Level       CEFRLevel `json:"level"`
}

// ActivityType classifies a friend activity
type ActivityType string

const (
	ActivityLessonCompleted ActivityType = "lesson_completed"
	ActivityTestPassed      ActivityType = "test_passed"
	ActivityStreak          ActivityType = "streak"
	ActivityAchievement     ActivityType = "achievement"
)

// FriendActivity is an immutable feed event
type FriendActivity struct {
	FriendID     string       `json:"friend_id"`
	ActivityType ActivityType `json:"activity_type"`
	Description  string       `json:"description"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// DirectMessage is a single message between two users
type DirectMessage struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"thread_id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Content    string     `json:"content"`
	SentAt     time.Time  `json:"sent_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// MessageThread is a two-party conversation keyed by the counterpart's id
type MessageThread struct {
	ID             string          `json:"id"`
	ParticipantIDs [2]string       `json:"participant_ids"`
	LastMessageAt  time.Time       `json:"last_message_at"`
	Messages       []DirectMessage `json:"messages"`
}
