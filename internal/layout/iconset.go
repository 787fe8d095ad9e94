package layout

import "sort"

// Icon is a rendered desktop icon for one window.
type Icon struct {
	ID       string `json:"id"`
	Glyph    string `json:"glyph"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	Kind     string `json:"kind"`
	Position Point  `json:"position"`
}

// IconSet holds the icons currently on the desktop, keyed by window id.
// It is not safe for concurrent use; the window manager serializes access.
type IconSet struct {
	icons map[string]*Icon
}

// NewIconSet returns an empty icon set.
func NewIconSet() *IconSet {
	return &IconSet{icons: make(map[string]*Icon)}
}

// Render creates or updates an icon for every id in order that has metadata,
// positions them on the grid by their ordinal, and drops icons whose id is
// missing from meta. Calling it repeatedly with the same input is a no-op.
func (s *IconSet) Render(order []string, meta map[string]Meta, c Container) []Icon {
	positions := Positions(len(order), c)
	for i, id := range order {
		m, ok := meta[id]
		if !ok {
			continue
		}
		icon := s.icons[id]
		if icon == nil {
			icon = &Icon{ID: id}
			s.icons[id] = icon
		}
		icon.Kind = m.Kind
		icon.Glyph = Glyph(m.Kind, m)
		icon.Line1, icon.Line2 = SplitTitle(m.Title)
		icon.Position = positions[i]
	}
	for id := range s.icons {
		if _, ok := meta[id]; !ok {
			delete(s.icons, id)
		}
	}
	return s.Snapshot(order)
}

// Remove deletes the icon for id, if present.
func (s *IconSet) Remove(id string) {
	delete(s.icons, id)
}

// IDs returns the ids of all icons, sorted.
func (s *IconSet) IDs() []string {
	out := make([]string, 0, len(s.icons))
	for id := range s.icons {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns copies of the icons listed in order, skipping unknown ids.
func (s *IconSet) Snapshot(order []string) []Icon {
	out := make([]Icon, 0, len(order))
	for _, id := range order {
		if icon, ok := s.icons[id]; ok {
			out = append(out, *icon)
		}
	}
	return out
}
