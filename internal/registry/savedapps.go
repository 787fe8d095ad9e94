// Package registry keeps the small persisted registries of the desktop:
// user-saved apps, the configured app catalogue and the theme selection.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/starford/hedgey/internal/embed"
	"github.com/starford/hedgey/internal/vfs"
)

const savedAppsKey = "saved_apps"

// SavedApp is a bookmarked URL shown in the Apps menu.
type SavedApp struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SavedApps is the list of user-saved apps.
type SavedApps struct {
	settings vfs.Settings
	mu       sync.Mutex
}

// NewSavedApps returns the saved-apps registry over settings.
func NewSavedApps(settings vfs.Settings) *SavedApps {
	return &SavedApps{settings: settings}
}

// List returns the saved apps in insertion order. Malformed entries are skipped.
func (s *SavedApps) List(ctx context.Context) ([]SavedApp, error) {
	raw, ok, err := s.settings.GetSetting(ctx, savedAppsKey)
	if err != nil || !ok {
		return []SavedApp{}, err
	}
	var stored []SavedApp
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return []SavedApp{}, nil
	}
	out := make([]SavedApp, 0, len(stored))
	for _, a := range stored {
		a.Name, a.URL = strings.TrimSpace(a.Name), strings.TrimSpace(a.URL)
		if a.Name != "" && a.URL != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// Upsert saves name under url. An existing entry with the same URL
// (case-insensitive) is renamed; otherwise a new entry is appended with its
// name suffixed " 2", " 3", ... on collision. It reports false when name or
// url is blank.
func (s *SavedApps) Upsert(ctx context.Context, name, url string) (bool, error) {
	name = strings.TrimSpace(name)
	url = embed.NormalizeURL(url)
	if name == "" || url == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	updated := false
	for i := range list {
		if strings.EqualFold(list[i].URL, url) {
			list[i] = SavedApp{Name: name, URL: url}
			updated = true
			break
		}
	}
	if !updated {
		list = append(list, SavedApp{Name: suffixName(name, list), URL: url})
	}

	data, err := json.Marshal(list)
	if err != nil {
		return false, fmt.Errorf("registry: encode saved apps: %w", err)
	}
	if err := s.settings.SetSetting(ctx, savedAppsKey, string(data)); err != nil {
		return false, err
	}
	return true, nil
}

func suffixName(name string, list []SavedApp) string {
	taken := make(map[string]struct{}, len(list))
	for _, a := range list {
		taken[strings.ToLower(a.Name)] = struct{}{}
	}
	if _, ok := taken[strings.ToLower(name)]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + " " + strconv.Itoa(i)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}
