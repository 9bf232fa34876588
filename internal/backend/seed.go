package backend

import (
	"context"
	"fmt"
	"time"

	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
)

const demoStreak = 7

var demoFriends = []models.Friend{
	{ID: "demo-alice", Email: "alice@example.com", DisplayName: "Alice", Level: models.LevelB2},
	{ID: "demo-bob", Email: "bob@example.com", DisplayName: "Bob", Level: models.LevelA2},
}

// seed gives a fresh account two friends, one feed item and a progress rollup
func (s *Service) seed(ctx context.Context, userID string) error {
	now := s.now()

	for _, f := range demoFriends {
		if err := s.store.AddFriend(ctx, userID, f); err != nil {
			return fmt.Errorf("failed to seed friend: %w", err)
		}
	}

	activity := models.FriendActivity{
		FriendID:     demoFriends[0].ID,
		ActivityType: models.ActivityLessonCompleted,
		Description:  "Alice completed the lesson \"Travel Plans\"",
		OccurredAt:   now.Add(-2 * time.Hour),
	}
	if err := s.store.AddFeedItem(ctx, userID, activity); err != nil {
		return fmt.Errorf("failed to seed feed: %w", err)
	}

	progress := &models.ProgressSnapshot{
		UserID:      userID,
		CollectedAt: now,
		StreakCount: demoStreak,
		TotalXP:     340,
		XPByFocus: map[models.LearningFocus]int{
			models.FocusGrammar:    120,
			models.FocusVocabulary: 90,
			models.FocusSpeaking:   130,
		},
		MasteredVocabulary:    180,
		MasteredGrammarTopics: 12,
	}
	if err := s.store.SaveProgress(ctx, progress); err != nil {
		return fmt.Errorf("failed to seed progress: %w", err)
	}

	return nil
}

var demoActivities = []struct {
	kind   models.ActivityType
	format string
}{
	{models.ActivityLessonCompleted, "%s completed a lesson"},
	{models.ActivityTestPassed, "%s passed a vocabulary test"},
	{models.ActivityStreak, "%s extended their streak"},
	{models.ActivityAchievement, "%s earned a new badge"},
}

// DemoActivity builds a rotating feed event for one of the demo friends
func DemoActivity(tick int, at time.Time) models.FriendActivity {
	friend := demoFriends[tick%len(demoFriends)]
	kind := demoActivities[tick%len(demoActivities)]
	return models.FriendActivity{
		FriendID:     friend.ID,
		ActivityType: kind.kind,
		Description:  fmt.Sprintf(kind.format, friend.DisplayName),
		OccurredAt:   at,
	}
}

// RunDemoActivity publishes a rotating demo activity to every user returned by
// recipients on each tick until ctx is done.
func (s *Service) RunDemoActivity(ctx context.Context, interval time.Duration, recipients func() []string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, userID := range recipients() {
				if err := s.PublishActivity(ctx, userID, DemoActivity(tick, now)); err != nil {
					log.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish demo activity")
				}
			}
		}
	}
}
