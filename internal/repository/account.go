package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lingo-core/internal/backend"
	"lingo-core/internal/models"

	"github.com/jackc/pgx/v5"
)

var _ backend.Store = (*Store)(nil)

const accountColumns = `
	id, provider, subject, email, password_hash, push_token, display_name,
	avatar_url, native_language, learning_goal, level, streak_count,
	theme, language, daily_reminder, achievements, created_at`

// CreateAccount creates a new account
func (s *Store) CreateAccount(ctx context.Context, account *backend.Account) error {
	reminder, achievements, err := encodeProfile(account.Profile)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	p := account.Profile
	_, err = s.db.Exec(ctx, query,
		p.ID, account.Provider, account.Subject, p.Email, account.PasswordHash, account.PushToken,
		p.DisplayName, p.AvatarURL, p.NativeLanguage, p.LearningGoal, p.Level, p.StreakCount,
		p.Preferences.Theme, p.Preferences.Language, reminder, achievements, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by user ID
func (s *Store) GetAccount(ctx context.Context, id string) (*backend.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.queryAccount(ctx, query, id)
}

// FindAccount retrieves an account by provider identity
func (s *Store) FindAccount(ctx context.Context, provider models.AuthProvider, subject string) (*backend.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider = $1 AND subject = $2`
	return s.queryAccount(ctx, query, provider, subject)
}

// FindAccountByEmail retrieves the first account registered with the email
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*backend.Account, error) {
	query := `
		SELECT ` + accountColumns + ` FROM accounts
		WHERE email <> '' AND lower(email) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`
	return s.queryAccount(ctx, query, email)
}

// UpdateAccount stores the mutable account fields
func (s *Store) UpdateAccount(ctx context.Context, account *backend.Account) error {
	reminder, achievements, err := encodeProfile(account.Profile)
	if err != nil {
		return err
	}

	query := `
		UPDATE accounts SET
			push_token = $2, display_name = $3, avatar_url = $4, native_language = $5,
			learning_goal = $6, level = $7, streak_count = $8, theme = $9, language = $10,
			daily_reminder = $11, achievements = $12
		WHERE id = $1
	`
	p := account.Profile
	tag, err := s.db.Exec(ctx, query,
		p.ID, account.PushToken, p.DisplayName, p.AvatarURL, p.NativeLanguage,
		p.LearningGoal, p.Level, p.StreakCount, p.Preferences.Theme, p.Preferences.Language,
		reminder, achievements,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", p.ID, models.ErrNotFound)
	}
	return nil
}

func (s *Store) queryAccount(ctx context.Context, query string, args ...interface{}) (*backend.Account, error) {
	var (
		account      backend.Account
		reminder     []byte
		achievements []byte
	)
	p := &account.Profile

	err := s.db.QueryRow(ctx, query, args...).Scan(
		&p.ID, &account.Provider, &account.Subject, &p.Email, &account.PasswordHash, &account.PushToken,
		&p.DisplayName, &p.AvatarURL, &p.NativeLanguage, &p.LearningGoal, &p.Level, &p.StreakCount,
		&p.Preferences.Theme, &p.Preferences.Language, &reminder, &achievements, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if len(reminder) > 0 && string(reminder) != "null" {
		p.Preferences.DailyReminder = &models.DailyReminder{}
		if err := json.Unmarshal(reminder, p.Preferences.DailyReminder); err != nil {
			return nil, fmt.Errorf("failed to decode daily reminder: %w", err)
		}
	}
	p.Achievements = []models.Achievement{}
	if len(achievements) > 0 {
		if err := json.Unmarshal(achievements, &p.Achievements); err != nil {
			return nil, fmt.Errorf("failed to decode achievements: %w", err)
		}
	}

	return &account, nil
}

func encodeProfile(p models.UserProfile) (reminder []byte, achievements []byte, err error) {
	if p.Preferences.DailyReminder != nil {
		if reminder, err = json.Marshal(p.Preferences.DailyReminder); err != nil {
			return nil, nil, fmt.Errorf("failed to encode daily reminder: %w", err)
		}
	}
	list := p.Achievements
	if list == nil {
		list = []models.Achievement{}
	}
	if achievements, err = json.Marshal(list); err != nil {
		return nil, nil, fmt.Errorf("failed to encode achievements: %w", err)
	}
	return reminder, achievements, nil
}
