package wm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/starford/hedgey/internal/embed"
	"github.com/starford/hedgey/internal/models"
	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/vfs"
)

// Content is what a window shows inside its chrome. The manager never looks
// inside it; it only mounts it after creation and unmounts it before removal.
type Content interface {
	Kind() Kind
	Mount(ctx context.Context, host Host) error
	Unmount()
}

// Host is the window a Content is mounted in.
type Host interface {
	ID() string
	SetTitle(title string)
	SetStatus(status string)
}

// Stater is implemented by contents that expose state to clients.
type Stater interface {
	State() any
}

// Refresher is implemented by contents that reload when documents change.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Factory builds the content for a new window.
type Factory interface {
	Content(kind Kind, opts Options) Content
}

// FileLister lists stored records.
type FileLister interface {
	ListNotes(ctx context.Context) ([]models.Record, error)
	ListUploads(ctx context.Context) ([]models.Record, error)
}

// NoteStore loads and saves encrypted notes.
type NoteStore interface {
	FileLister
	SaveNote(ctx context.Context, in vfs.NoteInput) (*models.Record, error)
	ReadNoteText(ctx context.Context, id string) (string, bool, error)
}

// AppSaver records a URL in the saved-apps registry.
type AppSaver interface {
	Upsert(ctx context.Context, name, url string) (bool, error)
}

// ThemeStore reads and writes the theme selection.
type ThemeStore interface {
	Theme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, name string) error
	Describe(name string) registry.ThemeInfo
}

// EngineStarter starts the heavyweight engine behind a terminal window. The
// returned handle is closed when the window closes.
type EngineStarter func(ctx context.Context) (io.Closer, error)

// Providers is the default Factory. Nil dependencies degrade the matching
// content to a status message.
type Providers struct {
	Files        NoteStore
	Apps         AppSaver
	Themes       ThemeStore
	Engine       EngineStarter
	TerminalURL  string
	TwitchParent string
	Autosave     time.Duration
	Logger       *slog.Logger
}

// Content implements Factory.
func (p Providers) Content(kind Kind, opts Options) Content {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	switch kind {
	case KindFiles:
		return &Finder{files: p.Files, section: opts.Section}
	case KindBrowser:
		return &Browser{apps: p.Apps, twitchParent: p.TwitchParent, initial: opts.URL}
	case KindNotes:
		return &Notes{store: p.Files, opts: opts.Notes, delay: p.Autosave, log: log}
	case KindTerminal:
		u := opts.URL
		if u == "" {
			u = p.TerminalURL
		}
		return &Terminal{EmbeddedApp: EmbeddedApp{url: u}, start: p.Engine}
	case KindThemes:
		return &ThemesPanel{themes: p.Themes}
	default:
		return &EmbeddedApp{url: opts.URL}
	}
}

// Finder lists stored documents.
type Finder struct {
	files   FileLister
	section string

	mu       sync.Mutex
	host     Host
	rows     []models.Record
	selected string
}

// FinderState is the client view of a Finder.
type FinderState struct {
	Section  string          `json:"section"`
	Rows     []models.Record `json:"rows"`
	Selected string          `json:"selected,omitempty"`
}

func (f *Finder) Kind() Kind { return KindFiles }

func (f *Finder) Mount(ctx context.Context, host Host) error {
	f.mu.Lock()
	f.host = host
	f.mu.Unlock()
	return f.Refresh(ctx)
}

func (f *Finder) Unmount() {
	f.mu.Lock()
	f.host = nil
	f.mu.Unlock()
}

// Refresh reloads the listing for the finder's section.
func (f *Finder) Refresh(ctx context.Context) error {
	if f.files == nil {
		f.status("No storage")
		return nil
	}
	var rows []models.Record
	var err error
	switch f.section {
	case "notes":
		rows, err = f.files.ListNotes(ctx)
	case "uploads":
		rows, err = f.files.ListUploads(ctx)
	default:
		var notes []models.Record
		if notes, err = f.files.ListNotes(ctx); err == nil {
			rows, err = f.files.ListUploads(ctx)
			rows = append(notes, rows...)
		}
	}
	if err != nil {
		f.status("Could not load")
		return err
	}
	f.mu.Lock()
	f.rows = rows
	f.mu.Unlock()
	f.status(fmt.Sprintf("%d items", len(rows)))
	return nil
}

// Select marks a row as selected.
func (f *Finder) Select(id string) bool {
	f.mu.Lock()
	var name string
	for _, r := range f.rows {
		if r.ID == id {
			name = r.Name
			f.selected = id
			break
		}
	}
	f.mu.Unlock()
	if name == "" {
		return false
	}
	f.status("Selected: " + name)
	return true
}

func (f *Finder) State() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]models.Record, len(f.rows))
	copy(rows, f.rows)
	return FinderState{Section: f.section, Rows: rows, Selected: f.selected}
}

func (f *Finder) status(s string) {
	f.mu.Lock()
	h := f.host
	f.mu.Unlock()
	if h != nil {
		h.SetStatus(s)
	}
}

// Browser shows an arbitrary URL, converting known media links to embeds.
type Browser struct {
	apps         AppSaver
	twitchParent string
	initial      string

	mu    sync.Mutex
	host  Host
	field string
	src   string
}

// BrowserState is the client view of a Browser.
type BrowserState struct {
	Field string `json:"field"`
	Src   string `json:"src"`
}

func (b *Browser) Kind() Kind { return KindBrowser }

func (b *Browser) Mount(_ context.Context, host Host) error {
	b.mu.Lock()
	b.host = host
	b.mu.Unlock()
	b.Navigate(b.initial)
	return nil
}

func (b *Browser) Unmount() {
	b.mu.Lock()
	b.host = nil
	b.src = ""
	b.mu.Unlock()
}

// Navigate loads raw, embedding it when a provider is recognized.
func (b *Browser) Navigate(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		b.setStatus("Enter a URL")
		return
	}
	conv := embed.ToEmbedURL(raw, embed.Options{TwitchParent: b.twitchParent})
	var status string
	b.mu.Lock()
	if conv.OK {
		b.field, b.src = raw, conv.EmbedURL
		status = "Embedded via " + conv.Provider
	} else {
		norm := embed.NormalizeURL(raw)
		b.field, b.src = norm, norm
		status = "Opened direct URL (no embed)"
		if conv.Reason == embed.ReasonTwitchParent {
			status = "Twitch needs a parent domain; opened raw URL"
		}
	}
	b.mu.Unlock()
	b.setStatus(status)
}

// SaveAsApp stores the current page as a saved app. An empty name is
// guessed from the host.
func (b *Browser) SaveAsApp(ctx context.Context, name string) (bool, error) {
	if b.apps == nil {
		return false, nil
	}
	b.mu.Lock()
	current := b.src
	if current == "" {
		current = b.field
	}
	b.mu.Unlock()
	u := embed.NormalizeURL(current)
	if strings.TrimSpace(name) == "" {
		name = GuessAppName(u)
	}
	return b.apps.Upsert(ctx, name, u)
}

// GuessAppName derives a display name from a URL's host.
func GuessAppName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "New App"
	}
	host := u.Hostname()
	if len(host) >= 4 && strings.EqualFold(host[:4], "www.") {
		host = host[4:]
	}
	if host == "" {
		return "New App"
	}
	return host
}

func (b *Browser) State() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BrowserState{Field: b.field, Src: b.src}
}

func (b *Browser) setStatus(s string) {
	b.mu.Lock()
	h := b.host
	b.mu.Unlock()
	if h != nil {
		h.SetStatus(s)
	}
}

// EmbeddedApp shows an opaque URL.
type EmbeddedApp struct {
	url string
}

// AppState is the client view of an EmbeddedApp.
type AppState struct {
	URL string `json:"url"`
}

func (a *EmbeddedApp) Kind() Kind { return KindApp }

func (a *EmbeddedApp) Mount(context.Context, Host) error { return nil }

func (a *EmbeddedApp) Unmount() {}

// URL returns the embedded address.
func (a *EmbeddedApp) URL() string {
	if a.url == "" {
		return "about:blank"
	}
	return a.url
}

func (a *EmbeddedApp) State() any { return AppState{URL: a.URL()} }

// Terminal is an embedded app that owns an engine handle for its lifetime.
type Terminal struct {
	EmbeddedApp
	start EngineStarter

	mu     sync.Mutex
	engine io.Closer
}

func (t *Terminal) Kind() Kind { return KindTerminal }

func (t *Terminal) Mount(ctx context.Context, host Host) error {
	_ = t.EmbeddedApp.Mount(ctx, host)
	if t.start == nil {
		host.SetStatus("engine not available.")
		return nil
	}
	host.SetStatus("Booting...")
	eng, err := t.start(ctx)
	if err != nil {
		host.SetStatus("Failed to start engine.")
		return err
	}
	t.mu.Lock()
	t.engine = eng
	t.mu.Unlock()
	host.SetStatus("Running")
	return nil
}

// Unmount releases the engine.
func (t *Terminal) Unmount() {
	t.mu.Lock()
	eng := t.engine
	t.engine = nil
	t.mu.Unlock()
	if eng != nil {
		_ = eng.Close()
	}
}

// ThemesPanel selects the desktop theme.
type ThemesPanel struct {
	themes ThemeStore

	mu   sync.Mutex
	host Host
	info registry.ThemeInfo
}

// ThemesState is the client view of a ThemesPanel.
type ThemesState struct {
	Selected    string `json:"selected"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

func (p *ThemesPanel) Kind() Kind { return KindThemes }

func (p *ThemesPanel) Mount(ctx context.Context, host Host) error {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()
	return p.Reload(ctx)
}

func (p *ThemesPanel) Unmount() {
	p.mu.Lock()
	p.host = nil
	p.mu.Unlock()
}

// Reload reads the stored selection, picking up changes made elsewhere.
func (p *ThemesPanel) Reload(ctx context.Context) error {
	if p.themes == nil {
		return nil
	}
	name, err := p.themes.Theme(ctx)
	if err != nil {
		return err
	}
	p.show(p.themes.Describe(name))
	return nil
}

// Apply selects name.
func (p *ThemesPanel) Apply(ctx context.Context, name string) error {
	if p.themes == nil {
		return nil
	}
	if err := p.themes.SetTheme(ctx, name); err != nil {
		return err
	}
	p.show(p.themes.Describe(name))
	return nil
}

func (p *ThemesPanel) show(info registry.ThemeInfo) {
	p.mu.Lock()
	p.info = info
	h := p.host
	p.mu.Unlock()
	if h != nil {
		h.SetStatus(info.Label + ": " + info.Description)
	}
}

func (p *ThemesPanel) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ThemesState{Selected: p.info.Name, Label: p.info.Label, Description: p.info.Description}
}
