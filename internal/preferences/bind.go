package preferences

import (
	"lingo-core/internal/session"

	"github.com/rs/zerolog/log"
)

// Bind keeps theme and localizer in step with the signed-in user's
// server-confirmed preferences. Signing out keeps the last values.
func Bind(manager *session.Manager, theme *Theme, localizer *Localizer) func() {
	apply := func(s session.Snapshot) {
		if s.Session == nil {
			return
		}
		prefs := s.Session.User.Preferences
		if theme != nil && theme.Mode() != prefs.Theme {
			theme.SetMode(prefs.Theme)
			log.Debug().Str("theme", string(prefs.Theme)).Msg("Theme changed")
		}
		if localizer != nil && localizer.Language() != prefs.Language {
			localizer.SetLanguage(prefs.Language)
			log.Debug().Str("language", string(prefs.Language)).Msg("Language changed")
		}
	}

	apply(manager.State())
	return manager.Subscribe(apply)
}
