package registry

import "strings"

// App is an entry of the configured app catalogue.
type App struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Catalogue is the read-only set of default apps, in configured order.
type Catalogue struct {
	apps []App
	byID map[string]App
}

// NewCatalogue builds a catalogue, skipping entries without an id. A missing
// title falls back to the id. Later duplicates are ignored.
func NewCatalogue(apps []App) *Catalogue {
	c := &Catalogue{byID: make(map[string]App, len(apps))}
	for _, a := range apps {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			continue
		}
		if _, dup := c.byID[a.ID]; dup {
			continue
		}
		if strings.TrimSpace(a.Title) == "" {
			a.Title = a.ID
		}
		c.byID[a.ID] = a
		c.apps = append(c.apps, a)
	}
	return c
}

// Get returns the app with id.
func (c *Catalogue) Get(id string) (App, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// List returns all apps in configured order.
func (c *Catalogue) List() []App {
	out := make([]App, len(c.apps))
	copy(out, c.apps)
	return out
}
