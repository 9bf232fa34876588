package session

import "lingo-core/internal/models"

// Snapshot is the read-only state exposed to the UI. Every change produces a
// new Snapshot; slices and pointers inside a Snapshot are never modified in
// place, so a Snapshot may be kept and read without locking.
type Snapshot struct {
	Session        *models.AuthSession      `json:"session"`
	BackendStatus  *models.BackendStatus    `json:"backend_status"`
	Progress       *models.ProgressSnapshot `json:"progress"`
	Friends        []models.Friend          `json:"friends"`
	FriendFeed     []models.FriendActivity  `json:"friend_feed"`
	MessageThreads []models.MessageThread   `json:"message_threads"`
}

// IsAuthenticated reports whether a session is active
func (s Snapshot) IsAuthenticated() bool {
	return s.Session != nil
}

// UserID returns the signed-in user's id, or "" when signed out
func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

// signedOut keeps only the backend status
func signedOut(s Snapshot) Snapshot {
	return Snapshot{
		BackendStatus:  s.BackendStatus,
		Friends:        []models.Friend{},
		FriendFeed:     []models.FriendActivity{},
		MessageThreads: []models.MessageThread{},
	}
}

func withSession(session models.AuthSession) func(Snapshot) Snapshot {
	return func(s Snapshot) Snapshot {
		next := signedOut(s)
		next.Session = &session
		return next
	}
}

func withStatus(status models.BackendStatus) func(Snapshot) Snapshot {
	return func(s Snapshot) Snapshot {
		s.BackendStatus = &status
		return s
	}
}

func withProgress(progress *models.ProgressSnapshot) func(Snapshot) Snapshot {
	var p *models.ProgressSnapshot
	if progress != nil {
		cp := *progress
		p = &cp
	}
	return func(s Snapshot) Snapshot {
		s.Progress = p
		return s
	}
}

func withFriends(friends []models.Friend) func(Snapshot) Snapshot {
	list := append([]models.Friend{}, friends...)
	return func(s Snapshot) Snapshot {
		s.Friends = list
		return s
	}
}

// withFriend appends friend, or replaces the entry with the same id
func withFriend(friend models.Friend) func(Snapshot) Snapshot {
	return func(s Snapshot) Snapshot {
		next := make([]models.Friend, 0, len(s.Friends)+1)
		replaced := false
		for _, f := range s.Friends {
			if f.ID == friend.ID {
				next = append(next, friend)
				replaced = true
				continue
			}
			next = append(next, f)
		}
		if !replaced {
			next = append(next, friend)
		}
		s.Friends = next
		return s
	}
}

func withFeed(feed []models.FriendActivity) func(Snapshot) Snapshot {
	list := append([]models.FriendActivity{}, feed...)
	return func(s Snapshot) Snapshot {
		s.FriendFeed = list
		return s
	}
}

// withActivity prepends activity to the feed
func withActivity(activity models.FriendActivity) func(Snapshot) Snapshot {
	return func(s Snapshot) Snapshot {
		next := make([]models.FriendActivity, 0, len(s.FriendFeed)+1)
		next = append(next, activity)
		s.FriendFeed = append(next, s.FriendFeed...)
		return s
	}
}

func withThreads(threads []models.MessageThread) func(Snapshot) Snapshot {
	list := append([]models.MessageThread{}, threads...)
	return func(s Snapshot) Snapshot {
		s.MessageThreads = list
		return s
	}
}

// withMessage appends message to the thread keyed by friendID, creating the
// thread on first message. LastMessageAt always follows the last message.
func withMessage(friendID string, message models.DirectMessage) func(Snapshot) Snapshot {
	return func(s Snapshot) Snapshot {
		next := make([]models.MessageThread, 0, len(s.MessageThreads)+1)
		found := false
		for _, t := range s.MessageThreads {
			if t.ID == friendID {
				t.Messages = append(append([]models.DirectMessage{}, t.Messages...), message)
				t.LastMessageAt = message.SentAt
				found = true
			}
			next = append(next, t)
		}
		if !found {
			next = append(next, models.MessageThread{
				ID:             friendID,
				ParticipantIDs: [2]string{friendID, s.UserID()},
				LastMessageAt:  message.SentAt,
				Messages:       []models.DirectMessage{message},
			})
		}
		s.MessageThreads = next
		return s
	}
}

// withPreferences replaces the session user's preferences
func withPreferences(prefs models.UserPreferences) func(Snapshot) Snapshot {
	return func(s Snapshot) Snapshot {
		if s.Session == nil {
			return s
		}
		session := *s.Session
		session.User.Preferences = prefs
		s.Session = &session
		return s
	}
}
