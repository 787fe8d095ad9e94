// Package desktop wires the filesystem, registries, event bus and window
// manager into one application session.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/sse"
	"github.com/starford/hedgey/internal/storage"
	"github.com/starford/hedgey/internal/vfs"
	"github.com/starford/hedgey/internal/wm"
)

const (
	bootKey = "boot_done"

	// WelcomeText prefills the first Notes window of a fresh install.
	WelcomeText = "HedgeyOS was made by Decentricity. Follow me on X!"
	// NoticeText is shown once after the first encrypted write.
	NoticeText = "Your files are encrypted. Click here for key operations."
)

// Menu actions.
const (
	ActionNewFiles    = "newFiles"
	ActionNewNotes    = "newNotes"
	ActionAboutSystem = "aboutSystem"
)

// Request is a menu click: an action, an app id, or a saved-app row.
type Request struct {
	Action    string `json:"action,omitempty"`
	App       string `json:"app,omitempty"`
	SavedName string `json:"saved_name,omitempty"`
	SavedURL  string `json:"saved_url,omitempty"`
}

// Session is one running desktop. It owns every subsystem and tears them down
// together in Close.
type Session struct {
	db        *vfs.DB
	keys      *vfs.Keyring
	files     *vfs.FileSystem
	bus       *sse.Broker
	wm        *wm.Manager
	saved     *registry.SavedApps
	catalogue *registry.Catalogue
	themes    *registry.Themes
	downloads storage.Provider
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	toast  string
	closed bool
}

// New starts a session over db. The session owns db from now on.
func New(db *vfs.DB, opts ...Option) *Session {
	o := options{
		iterations: vfs.DefaultIterations,
		desktop:    wm.Size{Width: 1024, Height: 768},
		frame:      time.Second / 60,
		logger:     slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	s := &Session{
		db:        db,
		keys:      vfs.NewKeyring(db, o.iterations),
		bus:       sse.NewBroker(o.iconsThrottle, sse.WithLogger(o.logger)),
		catalogue: registry.NewCatalogue(o.apps),
		downloads: o.downloads,
		log:       o.logger,
	}
	s.files = vfs.New(db, s.keys, vfs.WithNotice(s.bus.EncryptionNotice))
	s.saved = registry.NewSavedApps(db)
	s.themes = registry.NewThemes(db)

	managerOpts := []wm.Option{
		wm.WithEvents(s.bus),
		wm.WithLogger(o.logger),
		wm.WithDesktop(o.desktop.Width, o.desktop.Height),
		wm.WithFactory(wm.Providers{
			Files:        s.files,
			Apps:         s.saved,
			Themes:       s.themes,
			Engine:       o.engine,
			TerminalURL:  o.terminalURL,
			TwitchParent: o.twitchParent,
			Autosave:     o.autosave,
			Logger:       o.logger,
		}),
	}
	if o.cellWidth > 0 || o.cellHeight > 0 {
		managerOpts = append(managerOpts, wm.WithIconCells(o.cellWidth, o.cellHeight, o.cellPadding))
	}
	s.wm = wm.New(managerOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	events, stop := s.bus.Listen(sse.TopicOpenApp, sse.TopicEncryptionNotice, sse.TopicDocumentsChanged)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer stop()
		s.consume(ctx, events)
	}()
	go func() {
		defer s.wg.Done()
		_ = s.wm.Scheduler().Run(ctx, o.frame)
	}()

	return s
}

// Files returns the encrypted filesystem.
func (s *Session) Files() *vfs.FileSystem { return s.files }

// Keys returns the keyring.
func (s *Session) Keys() *vfs.Keyring { return s.keys }

// Bus returns the event bus.
func (s *Session) Bus() *sse.Broker { return s.bus }

// Manager returns the window manager.
func (s *Session) Manager() *wm.Manager { return s.wm }

// SavedApps returns the saved-apps registry.
func (s *Session) SavedApps() *registry.SavedApps { return s.saved }

// Catalogue returns the configured app catalogue.
func (s *Session) Catalogue() *registry.Catalogue { return s.catalogue }

// Themes returns the theme registry.
func (s *Session) Themes() *registry.Themes { return s.themes }

// Toast returns the last notice shown to the user.
func (s *Session) Toast() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toast
}

// Boot opens the initial windows. The first boot of a data directory
// prefills Notes with the welcome text.
func (s *Session) Boot(ctx context.Context) error {
	_, booted, err := s.db.GetSetting(ctx, bootKey)
	if err != nil {
		s.log.Warn("desktop: read boot flag", slog.String("error", err.Error()))
	}

	s.wm.CreateFilesWindow(ctx)
	if booted {
		s.wm.CreateNotesWindow(ctx, wm.NotesOptions{})
		return nil
	}

	welcome := WelcomeText
	s.wm.CreateNotesWindow(ctx, wm.NotesOptions{Prefill: &welcome, ForcePrefill: true})
	if err := s.db.SetSetting(ctx, bootKey, "1"); err != nil {
		return fmt.Errorf("desktop: record boot: %w", err)
	}
	s.log.Info("desktop: first boot")
	return nil
}

// HandleDroppedFiles stores uploads, announces the change and reveals the
// documents window. It returns how many files were stored.
func (s *Session) HandleDroppedFiles(ctx context.Context, files []vfs.Upload) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, f := range files {
		if _, err := s.files.SaveUpload(ctx, f); err != nil {
			s.log.Error("desktop: save dropped file",
				slog.String("name", f.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		saved++
	}
	if saved > 0 {
		s.bus.DocumentsChanged()
		s.wm.FocusDocumentsWindow(ctx)
	}
	return saved, errors.Join(errs...)
}

// Dispatch performs a menu request and returns the id of the window it opened.
func (s *Session) Dispatch(ctx context.Context, req Request) (string, error) {
	if req.SavedURL != "" || req.SavedName != "" {
		title := strings.TrimSpace(req.SavedName)
		if title == "" {
			title = "App"
		}
		u := req.SavedURL
		if u == "" {
			u = "about:blank"
		}
		return s.wm.CreateAppWindow(ctx, title, u), nil
	}

	switch req.Action {
	case "":
	case ActionNewFiles:
		return s.wm.CreateFilesWindow(ctx), nil
	case ActionNewNotes:
		return s.wm.CreateNotesWindow(ctx, wm.NotesOptions{}), nil
	case ActionAboutSystem:
		about, ok := s.catalogue.Get("about")
		if !ok {
			return "", fmt.Errorf("desktop: about app: %w", apperr.ErrNotFound)
		}
		return s.wm.CreateAppWindow(ctx, "About", about.URL), nil
	default:
		return "", fmt.Errorf("desktop: action %q: %w", req.Action, apperr.ErrNotFound)
	}

	if req.App != "" {
		return s.OpenApp(ctx, req.App)
	}
	return "", fmt.Errorf("desktop: empty request: %w", apperr.ErrNotFound)
}

// OpenApp opens a built-in app, a catalogue app or a saved app by id.
func (s *Session) OpenApp(ctx context.Context, id string) (string, error) {
	switch wm.Kind(id) {
	case wm.KindFiles:
		return s.wm.CreateFilesWindow(ctx), nil
	case wm.KindBrowser:
		return s.wm.CreateBrowserWindow(ctx, ""), nil
	case wm.KindNotes:
		return s.wm.CreateNotesWindow(ctx, wm.NotesOptions{}), nil
	case wm.KindTerminal:
		return s.wm.CreateTerminalWindow(ctx), nil
	case wm.KindThemes:
		return s.wm.CreateThemesWindow(ctx), nil
	}
	if app, ok := s.catalogue.Get(id); ok {
		return s.wm.CreateAppWindow(ctx, app.Title, app.URL), nil
	}
	saved, err := s.saved.List(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range saved {
		if strings.EqualFold(a.Name, id) {
			return s.wm.CreateAppWindow(ctx, a.Name, a.URL), nil
		}
	}
	return "", fmt.Errorf("desktop: app %q: %w", id, apperr.ErrNotFound)
}

// SetTheme selects name and updates every open Themes window.
func (s *Session) SetTheme(ctx context.Context, name string) error {
	if err := s.themes.SetTheme(ctx, name); err != nil {
		return err
	}
	s.SyncThemes(ctx)
	return nil
}

// SyncThemes reloads the selection shown by open Themes windows.
func (s *Session) SyncThemes(ctx context.Context) {
	for _, w := range s.wm.Windows() {
		if w.Kind != wm.KindThemes {
			continue
		}
		c, ok := s.wm.ContentOf(w.ID)
		if !ok {
			continue
		}
		if p, ok := c.(*wm.ThemesPanel); ok {
			if err := p.Reload(ctx); err != nil {
				s.log.Warn("desktop: reload themes", slog.String("id", w.ID), slog.String("error", err.Error()))
			}
		}
	}
}

// Download writes the decrypted record id into the downloads directory.
func (s *Session) Download(ctx context.Context, id string) (string, bool, error) {
	if s.downloads == nil {
		return "", false, fmt.Errorf("desktop: downloads: %w", apperr.ErrStorageUnavailable)
	}
	return s.files.Download(ctx, id, s.downloads)
}

func (s *Session) consume(ctx context.Context, events <-chan sse.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev sse.Event) {
	switch ev.Type {
	case sse.TopicEncryptionNotice:
		s.mu.Lock()
		s.toast = NoticeText
		s.mu.Unlock()
		s.log.Info("desktop: notice", slog.String("text", NoticeText))
	case sse.TopicDocumentsChanged:
		s.wm.Refresh(ctx, wm.KindFiles)
	case sse.TopicOpenApp:
		data, _ := ev.Data.(map[string]string)
		id := data["id"]
		if id == "" {
			return
		}
		if _, err := s.OpenApp(ctx, id); err != nil {
			s.log.Warn("desktop: open app", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
}

// Close flushes open windows, locks the keyring and releases the bus and
// database. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wm.CloseAll()
	s.cancel()
	s.wg.Wait()
	s.keys.Lock()
	s.bus.Close()
	return s.db.Close()
}
