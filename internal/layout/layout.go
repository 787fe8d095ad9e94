// Package layout computes desktop icon positions, labels and glyphs.
//
// Everything here is a pure function of its inputs except IconSet, which keeps
// the current icons keyed by window id so a render can be repeated on every
// state change.
package layout

import (
	"regexp"
	"slices"
	"strings"
)

// Default grid metrics in desktop pixels.
const (
	DefaultCellWidth  = 92
	DefaultCellHeight = 86
	DefaultPadding    = 10

	lineMax  = 14
	minBreak = 6
)

// Point is a pixel position relative to the desktop's top-left corner.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Container describes the desktop area icons are laid out in.
type Container struct {
	Width      int
	Height     int
	CellWidth  int
	CellHeight int
	Padding    int
}

func (c Container) withDefaults() Container {
	if c.CellWidth <= 0 {
		c.CellWidth = DefaultCellWidth
	}
	if c.CellHeight <= 0 {
		c.CellHeight = DefaultCellHeight
	}
	if c.Padding <= 0 {
		c.Padding = DefaultPadding
	}
	return c
}

// Columns returns how many icon columns fit in the container; at least one.
func (c Container) Columns() int {
	c = c.withDefaults()
	return max(1, (c.Width-c.Padding)/c.CellWidth)
}

// Positions returns the grid position of each of count icons. Icons fill
// left to right starting at the bottom row and wrap upward.
func Positions(count int, c Container) []Point {
	c = c.withDefaults()
	cols := c.Columns()
	out := make([]Point, count)
	for i := range count {
		col := i % cols
		row := i / cols
		out[i] = Point{
			X: c.Padding + col*c.CellWidth,
			Y: c.Height - c.Padding - c.CellHeight - row*c.CellHeight,
		}
	}
	return out
}

// SplitTitle wraps a title onto at most two label lines. The first break is
// taken at a word boundary when one exists late enough in the line; an
// overlong second line is truncated with an ellipsis.
func SplitTitle(title string) (string, string) {
	t := []rune(strings.TrimSpace(title))
	if len(t) == 0 {
		return "", ""
	}
	if len(t) <= lineMax {
		return string(t), ""
	}
	cut := lastSpaceAtOrBefore(t, lineMax)
	if cut < minBreak {
		cut = lineMax
	}
	line1 := strings.TrimSpace(string(t[:cut]))
	rest := []rune(strings.TrimSpace(string(t[cut:])))
	if len(rest) <= lineMax {
		return line1, string(rest)
	}
	line2 := strings.TrimRight(string(rest[:lineMax-1]), " \t") + "…"
	return line1, line2
}

func lastSpaceAtOrBefore(t []rune, idx int) int {
	for i := min(idx, len(t)-1); i >= 0; i-- {
		if t[i] == ' ' {
			return i
		}
	}
	return -1
}

// Meta is the per-icon metadata the glyph and label are derived from.
type Meta struct {
	Title string `json:"title"`
	Kind  string `json:"kind"`
	Type  string `json:"type,omitempty"`
	Ext   string `json:"ext,omitempty"`
}

var (
	terminalTitle = regexp.MustCompile(`(?i)terminal`)

	imageExts   = []string{"png", "jpg", "jpeg", "gif", "webp", "bmp", "svg"}
	videoExts   = []string{"mp4", "webm", "mov"}
	audioExts   = []string{"mp3", "wav", "ogg"}
	archiveExts = []string{"zip", "rar", "7z", "tar", "gz"}
)

// Glyph picks the icon symbol for a window or file kind.
func Glyph(kind string, m Meta) string {
	switch kind {
	case "files":
		return "📂"
	case "notes":
		return "📑"
	case "note":
		return "📝"
	case "browser":
		return "🌐"
	case "terminal":
		return "⌨️"
	case "themes":
		return "🎨"
	case "app":
		if terminalTitle.MatchString(m.Title) {
			return "⌨️"
		}
	case "file":
		return fileGlyph(strings.ToLower(m.Type), strings.ToLower(m.Ext))
	}
	return "📔"
}

func fileGlyph(typ, ext string) string {
	switch {
	case strings.HasPrefix(typ, "image/") || slices.Contains(imageExts, ext):
		return "🖼️"
	case strings.HasPrefix(typ, "video/") || slices.Contains(videoExts, ext):
		return "🎞️"
	case strings.HasPrefix(typ, "audio/") || slices.Contains(audioExts, ext):
		return "🎵"
	case typ == "application/pdf" || ext == "pdf":
		return "📄"
	case slices.Contains(archiveExts, ext):
		return "🗜️"
	default:
		return "📦"
	}
}
