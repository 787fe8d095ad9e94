package registry

import (
	"context"
	"fmt"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/vfs"
)

const (
	themeKey = "theme"
	darkKey  = "dark_mode"

	// DefaultTheme is used until another theme is selected.
	DefaultTheme = "hedgey"
)

// ThemeInfo describes a selectable theme.
type ThemeInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var themes = []ThemeInfo{
	{"hedgey", "OS 9 Classic", "Classic HedgeyOS chrome with Mac OS 9-inspired greys."},
	{"system7", "System Software 7", "Early Macintosh look with tighter chrome and lighter greys."},
	{"greenscreen", "Greenscreen", "Flat black-and-green CRT terminal vibe with glowing accents."},
	{"cyberpunk", "Cyberpunk Red", "BeOS-style tabs with flat black-and-red chrome."},
	{"beos", "BeOS", "Warm BeOS yellow title bars and a brighter, punchier contrast."},
}

// Themes persists the selected theme and the dark-mode flag.
type Themes struct {
	settings vfs.Settings
}

// NewThemes returns the theme registry over settings.
func NewThemes(settings vfs.Settings) *Themes {
	return &Themes{settings: settings}
}

// List returns every known theme.
func (t *Themes) List() []ThemeInfo {
	out := make([]ThemeInfo, len(themes))
	copy(out, themes)
	return out
}

// Describe returns the info for name, falling back to the default theme.
func (t *Themes) Describe(name string) ThemeInfo {
	for _, th := range themes {
		if th.Name == name {
			return th
		}
	}
	return themes[0]
}

// Theme returns the selected theme name. Unknown stored values read as the default.
func (t *Themes) Theme(ctx context.Context) (string, error) {
	name, ok, err := t.settings.GetSetting(ctx, themeKey)
	if err != nil {
		return DefaultTheme, err
	}
	if !ok || !known(name) {
		return DefaultTheme, nil
	}
	return name, nil
}

// SetTheme selects name.
func (t *Themes) SetTheme(ctx context.Context, name string) error {
	if !known(name) {
		return fmt.Errorf("registry: theme %q: %w", name, apperr.ErrNotFound)
	}
	return t.settings.SetSetting(ctx, themeKey, name)
}

// Dark reports whether dark mode is on.
func (t *Themes) Dark(ctx context.Context) (bool, error) {
	v, _, err := t.settings.GetSetting(ctx, darkKey)
	return v == "1", err
}

// SetDark turns dark mode on or off.
func (t *Themes) SetDark(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return t.settings.SetSetting(ctx, darkKey, v)
}

func known(name string) bool {
	for _, th := range themes {
		if th.Name == name {
			return true
		}
	}
	return false
}
