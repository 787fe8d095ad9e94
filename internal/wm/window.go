// Package wm is the window manager: it owns every window's geometry, stacking
// order and lifecycle, and keeps the desktop icons and open-windows menu in
// step with them.
package wm

import (
	"time"

	"github.com/starford/hedgey/internal/layout"
)

// Kind is the type of a window.
type Kind string

// Window kinds.
const (
	KindFiles    Kind = "files"
	KindBrowser  Kind = "browser"
	KindApp      Kind = "app"
	KindNotes    Kind = "notes"
	KindTerminal Kind = "terminal"
	KindThemes   Kind = "themes"
)

// ParseKind maps s to a Kind; unknown values become KindApp.
func ParseKind(s string) Kind {
	switch k := Kind(s); k {
	case KindFiles, KindBrowser, KindApp, KindNotes, KindTerminal, KindThemes:
		return k
	}
	return KindApp
}

var defaultTitles = map[Kind]string{
	KindFiles:    "Files",
	KindBrowser:  "Browser",
	KindNotes:    "Notes",
	KindTerminal: "Terminal",
	KindThemes:   "Themes",
}

// Geometry limits.
const (
	MinWidth    = 320
	MinHeight   = 240
	zoomPad     = 6
	dragKeep    = 40
	dragOffFrac = 0.4
	cascadeBase = 6
	cascadeStep = 18
	zBase       = 20
)

// Rect is a window rectangle in desktop-local pixels.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Left+r.Width && y >= r.Top && y < r.Top+r.Height
}

// Size is the desktop viewport size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a pointer position in desktop-local pixels.
type Point = layout.Point

// Window is a snapshot of one window.
type Window struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Rect        Rect      `json:"rect"`
	Z           int       `json:"z"`
	Minimized   bool      `json:"minimized"`
	Maximized   bool      `json:"maximized"`
	Active      bool      `json:"active"`
	RestoreRect *Rect     `json:"restore_rect,omitempty"`
	Tilt        float64   `json:"tilt"`
	Status      string    `json:"status,omitempty"`
	Section     string    `json:"section,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Content     any       `json:"content,omitempty"`
}

// MenuEntry is a row of the open-windows menu.
type MenuEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type gesture struct {
	start Point
	last  Point
	rect  Rect
}

type window struct {
	id        string
	seq       int
	kind      Kind
	title     string
	rect      Rect
	z         int
	minimized bool
	maximized bool
	restore   *Rect
	createdAt time.Time
	status    string
	section   string
	content   Content
	mounted   chan struct{} // closed once Spawn finished mounting content
	closing   bool

	drag   *gesture
	resize *gesture
	tilt   float64
}

func (w *window) snapshot(active string) Window {
	s := Window{
		ID:        w.id,
		Kind:      w.kind,
		Title:     w.title,
		Rect:      w.rect,
		Z:         w.z,
		Minimized: w.minimized,
		Maximized: w.maximized,
		Active:    w.id == active,
		Tilt:      w.tilt,
		Status:    w.status,
		Section:   w.section,
		CreatedAt: w.createdAt,
	}
	if w.restore != nil {
		r := *w.restore
		s.RestoreRect = &r
	}
	if st, ok := w.content.(Stater); ok {
		s.Content = st.State()
	}
	return s
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(hi, n))
}
