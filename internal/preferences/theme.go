package preferences

import (
	_ "embed"
	"fmt"
	"sync"

	"lingo-core/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed palettes.yaml
var palettesYAML []byte

// Palette is the colour set of one resolved theme
type Palette struct {
	Background      string `yaml:"background" json:"background"`
	Surface         string `yaml:"surface" json:"surface"`
	Primary         string `yaml:"primary" json:"primary"`
	PrimaryContrast string `yaml:"primary_contrast" json:"primary_contrast"`
	Secondary       string `yaml:"secondary" json:"secondary"`
	Text            string `yaml:"text" json:"text"`
	TextSecondary   string `yaml:"text_secondary" json:"text_secondary"`
	Border          string `yaml:"border" json:"border"`
	Success         string `yaml:"success" json:"success"`
	Warning         string `yaml:"warning" json:"warning"`
	Danger          string `yaml:"danger" json:"danger"`
}

var (
	palettesOnce sync.Once
	palettes     map[models.ThemeMode]Palette
	palettesErr  error
)

func loadPalettes() (map[models.ThemeMode]Palette, error) {
	palettesOnce.Do(func() {
		var table map[models.ThemeMode]Palette
		if err := yaml.Unmarshal(palettesYAML, &table); err != nil {
			palettesErr = fmt.Errorf("failed to parse palettes: %w", err)
			return
		}
		for _, mode := range []models.ThemeMode{models.ThemeLight, models.ThemeDark} {
			if _, ok := table[mode]; !ok {
				palettesErr = fmt.Errorf("missing %s palette", mode)
				return
			}
		}
		palettes = table
	})
	return palettes, palettesErr
}

// SchemeResolver reports the platform colour scheme: light or dark
type SchemeResolver func() models.ThemeMode

// Theme holds the selected theme mode
type Theme struct {
	mu       sync.RWMutex
	mode     models.ThemeMode
	resolver SchemeResolver
}

// NewTheme creates a theme store. A nil resolver treats the system scheme as light.
func NewTheme(mode models.ThemeMode, resolver SchemeResolver) (*Theme, error) {
	if _, err := loadPalettes(); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		mode = models.ThemeLight
	}
	if resolver == nil {
		resolver = func() models.ThemeMode { return models.ThemeLight }
	}
	return &Theme{mode: mode, resolver: resolver}, nil
}

// Mode returns the selected mode, which may be system
func (t *Theme) Mode() models.ThemeMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// SetMode selects a mode; unknown modes are ignored
func (t *Theme) SetMode(mode models.ThemeMode) {
	if !mode.Valid() {
		return
	}
	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()
}

// Resolved returns light or dark, asking the resolver when the mode is system
func (t *Theme) Resolved() models.ThemeMode {
	mode := t.Mode()
	if mode == models.ThemeSystem {
		if t.resolver() == models.ThemeDark {
			return models.ThemeDark
		}
		return models.ThemeLight
	}
	return mode
}

// Palette returns the colours for the resolved mode
func (t *Theme) Palette() Palette {
	table, _ := loadPalettes()
	return table[t.Resolved()]
}
