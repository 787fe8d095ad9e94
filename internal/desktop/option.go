package desktop

import (
	"log/slog"
	"time"

	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/storage"
	"github.com/starford/hedgey/internal/wm"
)

// Option is a functional option for configuring a Session.
type Option func(*options)

type options struct {
	iterations    int
	apps          []registry.App
	desktop       wm.Size
	cellWidth     int
	cellHeight    int
	cellPadding   int
	frame         time.Duration
	iconsThrottle time.Duration
	autosave      time.Duration
	terminalURL   string
	twitchParent  string
	engine        wm.EngineStarter
	downloads     storage.Provider
	logger        *slog.Logger
}

// WithIterations sets the PBKDF2 iteration count for new passphrases.
func WithIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// WithApps sets the app catalogue.
func WithApps(apps []registry.App) Option {
	return func(o *options) { o.apps = apps }
}

// WithDesktop sets the initial desktop size.
func WithDesktop(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.desktop = wm.Size{Width: width, Height: height}
		}
	}
}

// WithIconCells sets the icon grid cell size and padding.
func WithIconCells(width, height, padding int) Option {
	return func(o *options) { o.cellWidth, o.cellHeight, o.cellPadding = width, height, padding }
}

// WithFrameRate sets how often coalesced visual updates are applied.
func WithFrameRate(fps int) Option {
	return func(o *options) {
		if fps > 0 {
			o.frame = time.Second / time.Duration(fps)
		}
	}
}

// WithIconsThrottle sets the minimum gap between icons.updated events.
func WithIconsThrottle(d time.Duration) Option {
	return func(o *options) { o.iconsThrottle = d }
}

// WithAutosave sets the Notes autosave delay.
func WithAutosave(d time.Duration) Option {
	return func(o *options) { o.autosave = d }
}

// WithTerminal sets the terminal page URL and the engine started for it.
func WithTerminal(url string, engine wm.EngineStarter) Option {
	return func(o *options) { o.terminalURL, o.engine = url, engine }
}

// WithTwitchParent sets the parent domain passed to Twitch embeds.
func WithTwitchParent(parent string) Option {
	return func(o *options) { o.twitchParent = parent }
}

// WithDownloads sets where decrypted downloads are written.
func WithDownloads(p storage.Provider) Option {
	return func(o *options) { o.downloads = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
