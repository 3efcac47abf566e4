package workspace

import (
	"fmt"
	"slices"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/sound"
)

// Editor font size bounds.
const (
	MinFontSize = 10
	MaxFontSize = 24
)

// FontFamilies are the editor fonts offered in the settings panel.
var FontFamilies = []string{"Fira Code", "JetBrains Mono", "Source Code Pro", "Courier New"}

// Settings are the editor preferences saved with a project.
type Settings struct {
	Theme      string         `json:"theme"`
	FontSize   int            `json:"fontSize"`
	FontFamily string         `json:"fontFamily"`
	Sound      sound.Settings `json:"sound"`
}

// DefaultSettings mirrors the welcome project.
func DefaultSettings() Settings {
	return Settings{
		Theme:      "dark",
		FontSize:   14,
		FontFamily: "Fira Code",
		Sound:      sound.DefaultSettings(),
	}
}

// Validate checks every field.
func (s Settings) Validate() error {
	var problems []string
	if s.Theme != "light" && s.Theme != "dark" {
		problems = append(problems, fmt.Sprintf("theme must be light or dark, got %q", s.Theme))
	}
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		problems = append(problems, fmt.Sprintf("font size must be between %d and %d, got %d", MinFontSize, MaxFontSize, s.FontSize))
	}
	if !slices.Contains(FontFamilies, s.FontFamily) {
		problems = append(problems, fmt.Sprintf("unsupported font family %q", s.FontFamily))
	}
	if _, err := sound.ParseKind(string(s.Sound.Kind)); err != nil {
		problems = append(problems, err.Error())
	}
	if s.Sound.Volume < 0 || s.Sound.Volume > 1 {
		problems = append(problems, fmt.Sprintf("sound volume must be between 0 and 1, got %g", s.Sound.Volume))
	}
	if len(problems) == 0 {
		return nil
	}
	err := errors.NewValidationError(errors.ErrCodeValidationFailed, "invalid settings")
	return err.WithContext("problems", problems)
}
