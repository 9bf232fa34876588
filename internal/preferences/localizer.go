package preferences

import (
	_ "embed"
	"fmt"
	"sync"

	"lingo-core/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed translations.yaml
var translationsYAML []byte

// Localizer translates UI keys into the selected language
type Localizer struct {
	mu       sync.RWMutex
	language models.LanguageCode
	tables   map[models.LanguageCode]map[string]string
}

// NewLocalizer loads the embedded translation tables
func NewLocalizer(language models.LanguageCode) (*Localizer, error) {
	var tables map[models.LanguageCode]map[string]string
	if err := yaml.Unmarshal(translationsYAML, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse translations: %w", err)
	}
	if _, ok := tables[models.LanguageCzech]; !ok {
		return nil, fmt.Errorf("missing %s translations", models.LanguageCzech)
	}

	l := &Localizer{tables: tables, language: models.LanguageCzech}
	l.SetLanguage(language)
	return l, nil
}

// Language returns the selected language
func (l *Localizer) Language() models.LanguageCode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.language
}

// SetLanguage selects a language; unsupported codes are ignored
func (l *Localizer) SetLanguage(code models.LanguageCode) {
	if !code.Valid() {
		return
	}
	l.mu.Lock()
	l.language = code
	l.mu.Unlock()
}

// T returns the translation of key, then the first fallback, then key itself
func (l *Localizer) T(key string, fallback ...string) string {
	l.mu.RLock()
	table, ok := l.tables[l.language]
	if !ok {
		table = l.tables[models.LanguageCzech]
	}
	value, found := table[key]
	l.mu.RUnlock()

	if found {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return key
}
