package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lingo-core/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetProgress retrieves the latest progress snapshot, or nil when none exists
func (s *Store) GetProgress(ctx context.Context, userID string) (*models.ProgressSnapshot, error) {
	query := `
		SELECT user_id, collected_at, streak_count, total_xp, xp_by_focus,
			mastered_vocabulary, mastered_grammar_topics
		FROM progress_snapshots
		WHERE user_id = $1
	`
	var (
		p     models.ProgressSnapshot
		focus []byte
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.CollectedAt, &p.StreakCount, &p.TotalXP, &focus,
		&p.MasteredVocabulary, &p.MasteredGrammarTopics,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if err := json.Unmarshal(focus, &p.XPByFocus); err != nil {
		return nil, fmt.Errorf("failed to decode xp by focus: %w", err)
	}
	return &p, nil
}

// SaveProgress replaces the user's progress snapshot
func (s *Store) SaveProgress(ctx context.Context, p *models.ProgressSnapshot) error {
	focus, err := json.Marshal(p.XPByFocus)
	if err != nil {
		return fmt.Errorf("failed to encode xp by focus: %w", err)
	}

	query := `
		INSERT INTO progress_snapshots (user_id, collected_at, streak_count, total_xp, xp_by_focus,
			mastered_vocabulary, mastered_grammar_topics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			collected_at = EXCLUDED.collected_at,
			streak_count = EXCLUDED.streak_count,
			total_xp = EXCLUDED.total_xp,
			xp_by_focus = EXCLUDED.xp_by_focus,
			mastered_vocabulary = EXCLUDED.mastered_vocabulary,
			mastered_grammar_topics = EXCLUDED.mastered_grammar_topics
	`
	_, err = s.db.Exec(ctx, query, p.UserID, p.CollectedAt, p.StreakCount, p.TotalXP, focus,
		p.MasteredVocabulary, p.MasteredGrammarTopics)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// ListFriends retrieves the friend list in the order friends were added
func (s *Store) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	query := `
		SELECT friend_id, email, display_name, avatar_url, level
		FROM friends
		WHERE user_id = $1
		ORDER BY position
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.Email, &f.DisplayName, &f.AvatarURL, &f.Level); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friends: %w", err)
	}
	return friends, nil
}

// AddFriend adds a friend to the user's list
func (s *Store) AddFriend(ctx context.Context, userID string, f models.Friend) error {
	query := `
		INSERT INTO friends (user_id, friend_id, email, display_name, avatar_url, level)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, userID, f.ID, f.Email, f.DisplayName, f.AvatarURL, f.Level)
	if err != nil {
		return fmt.Errorf("failed to add friend: %w", err)
	}
	return nil
}

// ListFeed retrieves the user's feed, newest first
func (s *Store) ListFeed(ctx context.Context, userID string) ([]models.FriendActivity, error) {
	query := `
		SELECT friend_id, activity_type, description, occurred_at
		FROM feed_items
		WHERE user_id = $1
		ORDER BY id DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	feed := []models.FriendActivity{}
	for rows.Next() {
		var a models.FriendActivity
		if err := rows.Scan(&a.FriendID, &a.ActivityType, &a.Description, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		feed = append(feed, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed: %w", err)
	}
	return feed, nil
}

// AddFeedItem appends an activity to the user's feed
func (s *Store) AddFeedItem(ctx context.Context, userID string, a models.FriendActivity) error {
	query := `
		INSERT INTO feed_items (user_id, friend_id, activity_type, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Exec(ctx, query, userID, a.FriendID, a.ActivityType, a.Description, a.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to add feed item: %w", err)
	}
	return nil
}

// CreateMessage stores a direct message
func (s *Store) CreateMessage(ctx context.Context, m *models.DirectMessage) error {
	query := `
		INSERT INTO direct_messages (id, sender_id, receiver_id, content, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query, m.ID, m.SenderID, m.ReceiverID, m.Content, m.SentAt, m.ReadAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListMessages retrieves every message the user sent or received, in send order
func (s *Store) ListMessages(ctx context.Context, userID string) ([]models.DirectMessage, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, sent_at, read_at
		FROM direct_messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY position
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.DirectMessage
	for rows.Next() {
		var m models.DirectMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.SentAt, &m.ReadAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.ThreadID = m.ReceiverID
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}
