package wm

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/starford/hedgey/internal/layout"
	"github.com/starford/hedgey/internal/sse"
)

// SectionDocuments scopes a Files window to stored documents.
const SectionDocuments = "documents"

// Events receives window-manager notifications.
type Events interface {
	Publish(event sse.Event)
	PublishIcons(data any)
}

// Options are per-window spawn parameters.
type Options struct {
	URL     string       `json:"url,omitempty"`
	Section string       `json:"section,omitempty"`
	Notes   NotesOptions `json:"notes,omitempty"`
}

// Manager owns all windows of one desktop session.
type Manager struct {
	factory Factory
	events  Events
	sched   *Scheduler
	log     *slog.Logger
	now     func() time.Time
	cells   layout.Container

	mu      sync.Mutex
	windows map[string]*window
	order   []string // insertion order
	zTop    int
	idSeq   int
	active  string
	desk    Size
	icons   *layout.IconSet
}

// Option configures a Manager.
type Option func(*Manager)

// WithFactory sets the content factory used by Spawn.
func WithFactory(f Factory) Option { return func(m *Manager) { m.factory = f } }

// WithEvents sets the notification sink.
func WithEvents(e Events) Option { return func(m *Manager) { m.events = e } }

// WithScheduler sets the frame scheduler used for drag tilt.
func WithScheduler(s *Scheduler) Option { return func(m *Manager) { m.sched = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock overrides the time source for window creation stamps.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithDesktop sets the initial desktop size.
func WithDesktop(width, height int) Option {
	return func(m *Manager) { m.desk = Size{Width: width, Height: height} }
}

// WithIconCells overrides the icon grid cell size and padding.
func WithIconCells(cellWidth, cellHeight, padding int) Option {
	return func(m *Manager) {
		m.cells = layout.Container{CellWidth: cellWidth, CellHeight: cellHeight, Padding: padding}
	}
}

// New creates an empty window manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		windows: make(map[string]*window),
		zTop:    zBase,
		desk:    Size{Width: 1024, Height: 768},
		icons:   layout.NewIconSet(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.sched == nil {
		m.sched = NewScheduler()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Scheduler returns the frame scheduler.
func (m *Manager) Scheduler() *Scheduler { return m.sched }

// Spawn creates a window, mounts its content and focuses it. Unknown kinds
// open as plain apps; an empty title takes the kind's default.
func (m *Manager) Spawn(ctx context.Context, kind Kind, title string, opts Options) string {
	kind = ParseKind(string(kind))
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitles[kind]
	}
	if title == "" {
		title = "Window"
	}

	m.mu.Lock()
	m.idSeq++
	m.zTop++
	w := &window{
		id:        "w" + strconv.Itoa(m.idSeq),
		seq:       m.idSeq,
		kind:      kind,
		title:     title,
		z:         m.zTop,
		createdAt: m.now(),
		section:   opts.Section,
		mounted:   make(chan struct{}),
	}
	w.rect = m.initialRectLocked(w.seq)
	if m.factory != nil {
		w.content = m.factory.Content(kind, opts)
	}
	m.windows[w.id] = w
	m.order = append(m.order, w.id)
	m.mu.Unlock()

	if w.content != nil {
		if err := w.content.Mount(ctx, host{m: m, id: w.id}); err != nil {
			m.log.Warn("wm: mount content",
				slog.String("id", w.id),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
		}
	}
	close(w.mounted)

	m.mu.Lock()
	var evs []sse.Event
	if _, ok := m.windows[w.id]; ok {
		evs = append(evs, windowEvent(sse.TopicWindowOpened, w))
		evs = append(evs, m.focusLocked(w.id)...)
	}
	u := m.updateLocked()
	m.mu.Unlock()

	m.publish(evs, u)
	m.log.Debug("wm: spawned", slog.String("id", w.id), slog.String("kind", string(kind)))
	return w.id
}

// CreateFilesWindow opens a file browser.
func (m *Manager) CreateFilesWindow(ctx context.Context) string {
	return m.Spawn(ctx, KindFiles, "Files", Options{})
}

// CreateBrowserWindow opens a web browser, optionally at url.
func (m *Manager) CreateBrowserWindow(ctx context.Context, url string) string {
	return m.Spawn(ctx, KindBrowser, "Browser", Options{URL: url})
}

// CreateAppWindow opens an embedded app.
func (m *Manager) CreateAppWindow(ctx context.Context, title, url string) string {
	return m.Spawn(ctx, KindApp, title, Options{URL: url})
}

// CreateNotesWindow opens the notes editor.
func (m *Manager) CreateNotesWindow(ctx context.Context, opts NotesOptions) string {
	return m.Spawn(ctx, KindNotes, "Notes", Options{Notes: opts})
}

// CreateTerminalWindow opens a terminal.
func (m *Manager) CreateTerminalWindow(ctx context.Context) string {
	return m.Spawn(ctx, KindTerminal, "Terminal", Options{})
}

// CreateThemesWindow opens the theme picker.
func (m *Manager) CreateThemesWindow(ctx context.Context) string {
	return m.Spawn(ctx, KindThemes, "Themes", Options{})
}

// FocusDocumentsWindow reveals the newest Files window scoped to documents,
// reloading its listing, or opens one.
func (m *Manager) FocusDocumentsWindow(ctx context.Context) string {
	m.mu.Lock()
	var found *window
	for i := len(m.order) - 1; i >= 0; i-- {
		w := m.windows[m.order[i]]
		if w.kind == KindFiles && w.section == SectionDocuments && !w.closing {
			found = w
			break
		}
	}
	if found == nil {
		m.mu.Unlock()
		return m.Spawn(ctx, KindFiles, "Documents", Options{Section: SectionDocuments})
	}
	found.minimized = false
	evs := m.focusLocked(found.id)
	u := m.updateLocked()
	c := found.content
	m.mu.Unlock()

	if r, ok := c.(Refresher); ok {
		if err := r.Refresh(ctx); err != nil {
			m.log.Warn("wm: refresh documents", slog.String("error", err.Error()))
		}
	}
	m.publish(evs, u)
	return found.id
}

// Focus raises id above every other window. Unknown ids are ignored.
func (m *Manager) Focus(id string) {
	m.mu.Lock()
	evs := m.focusLocked(id)
	if evs == nil {
		m.mu.Unlock()
		return
	}
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(evs, u)
}

// Minimize hides id; it keeps its icon.
func (m *Manager) Minimize(id string) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.minimized {
		m.mu.Unlock()
		return
	}
	w.minimized = true
	m.endGesturesLocked(w)
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(nil, u)
}

// Restore shows a minimized window again.
func (m *Manager) Restore(id string) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || !w.minimized {
		m.mu.Unlock()
		return
	}
	w.minimized = false
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(nil, u)
}

// Reveal restores and focuses id, as picking it from the icon or menu does.
func (m *Manager) Reveal(id string) {
	m.Restore(id)
	m.Focus(id)
}

// Close unmounts the window content, then removes the window and its icon.
// If it was active, the last remaining window in creation order gets focus.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing {
		m.mu.Unlock()
		return
	}
	w.closing = true
	c := w.content
	m.mu.Unlock()

	// A close racing Spawn unmounts only after the mount has finished.
	<-w.mounted
	if c != nil {
		c.Unmount()
	}

	m.mu.Lock()
	delete(m.windows, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	m.icons.Remove(id)
	m.sched.Cancel(tiltKey(id))
	evs := []sse.Event{windowEvent(sse.TopicWindowClosed, w)}
	if m.active == id {
		m.active = ""
		if n := len(m.order); n > 0 {
			evs = append(evs, m.focusLocked(m.order[n-1])...)
		}
	}
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(evs, u)
}

// CloseAll closes every window, newest first.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := slices.Clone(m.order)
	m.mu.Unlock()
	for i := len(ids) - 1; i >= 0; i-- {
		m.Close(ids[i])
	}
}

// ToggleZoom maximizes id to fill the desktop, or returns it to the rectangle
// it had before. The saved rectangle is fitted into the current desktop.
func (m *Manager) ToggleZoom(id string) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.endGesturesLocked(w)
	if !w.maximized {
		r := w.rect
		w.restore = &r
		w.rect = Rect{
			Left:   zoomPad,
			Top:    zoomPad,
			Width:  max(MinWidth, m.desk.Width-2*zoomPad),
			Height: max(MinHeight, m.desk.Height-2*zoomPad),
		}
		w.maximized = true
	} else {
		if w.restore != nil {
			w.rect = m.fitLocked(*w.restore)
		}
		w.restore = nil
		w.maximized = false
	}
	evs := m.focusLocked(id)
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(evs, u)
}

// SetTitle renames id. A blank title becomes "Window".
func (m *Manager) SetTitle(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Window"
	}
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.title == title {
		m.mu.Unlock()
		return
	}
	w.title = title
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(nil, u)
}

func (m *Manager) setStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[id]; ok {
		w.status = status
	}
}

// TopmostAt returns the highest window containing (x, y) among visible
// windows of the given kinds (files and notes when none are given).
func (m *Manager) TopmostAt(x, y int, kinds ...Kind) (string, bool) {
	if len(kinds) == 0 {
		kinds = []Kind{KindFiles, KindNotes}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *window
	for _, w := range m.windows {
		if w.minimized || w.closing || !slices.Contains(kinds, w.kind) || !w.rect.Contains(x, y) {
			continue
		}
		if best == nil || w.z > best.z {
			best = w
		}
	}
	if best == nil {
		return "", false
	}
	return best.id, true
}

// Window returns a snapshot of id.
func (m *Manager) Window(id string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return Window{}, false
	}
	return w.snapshot(m.active), true
}

// Windows returns snapshots of all windows, topmost first.
func (m *Manager) Windows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Window, 0, len(m.windows))
	for _, w := range m.byZLocked() {
		out = append(out, w.snapshot(m.active))
	}
	return out
}

// ContentOf returns the content mounted in id.
func (m *Manager) ContentOf(id string) (Content, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || w.content == nil {
		return nil, false
	}
	return w.content, true
}

// Active returns the focused window id, if any.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Icons returns the desktop icons in layout order.
func (m *Manager) Icons() []layout.Icon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.icons.Snapshot(m.iconOrderLocked())
}

// OpenWindows returns the open-windows menu, topmost first.
func (m *Manager) OpenWindows() []MenuEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.menuLocked()
}

// RefreshIcons re-renders the desktop icons and publishes them.
func (m *Manager) RefreshIcons() []layout.Icon {
	m.mu.Lock()
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(nil, u)
	return u.icons
}

// RefreshOpenWindowsMenu rebuilds the open-windows menu and publishes it.
func (m *Manager) RefreshOpenWindowsMenu() []MenuEntry {
	m.mu.Lock()
	menu := m.menuLocked()
	m.mu.Unlock()
	if m.events != nil {
		m.events.Publish(sse.Event{Type: sse.TopicWindowsMenu, Data: menu})
	}
	return menu
}

// Desktop returns the desktop size.
func (m *Manager) Desktop() Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desk
}

// SetDesktopSize records a viewport resize and re-lays out the icons.
func (m *Manager) SetDesktopSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.mu.Lock()
	m.desk = Size{Width: width, Height: height}
	u := m.updateLocked()
	m.mu.Unlock()
	m.publish(nil, u)
}

// Refresh reloads every content of the given kinds that supports it.
func (m *Manager) Refresh(ctx context.Context, kinds ...Kind) {
	m.mu.Lock()
	var targets []Refresher
	for _, id := range m.order {
		w := m.windows[id]
		if len(kinds) > 0 && !slices.Contains(kinds, w.kind) {
			continue
		}
		if r, ok := w.content.(Refresher); ok && !w.closing {
			targets = append(targets, r)
		}
	}
	m.mu.Unlock()
	for _, r := range targets {
		if err := r.Refresh(ctx); err != nil {
			m.log.Warn("wm: refresh content", slog.String("error", err.Error()))
		}
	}
}

func (m *Manager) focusLocked(id string) []sse.Event {
	w, ok := m.windows[id]
	if !ok {
		return nil
	}
	m.active = id
	m.zTop++
	w.z = m.zTop
	return []sse.Event{windowEvent(sse.TopicWindowFocused, w)}
}

func (m *Manager) initialRectLocked(seq int) Rect {
	dw, dh := m.desk.Width, m.desk.Height
	frac := 0.8
	switch {
	case dw >= 1600:
		frac = 0.45
	case dw >= 1024:
		frac = 0.6
	}
	w := max(MinWidth, int(float64(dw)*frac))
	h := max(MinHeight, int(float64(dh)*0.5))
	off := cascadeBase + cascadeStep*(seq-1)
	return Rect{
		Left:   clamp(off, 0, max(0, dw-w)),
		Top:    clamp(off, 0, max(0, dh-h)),
		Width:  w,
		Height: h,
	}
}

// fitLocked caps r to the desktop and pulls it back inside the drag bounds.
func (m *Manager) fitLocked(r Rect) Rect {
	b := m.dragBoundsLocked()
	r.Width = clamp(r.Width, MinWidth, max(MinWidth, m.desk.Width))
	r.Height = clamp(r.Height, MinHeight, max(MinHeight, m.desk.Height))
	r.Left = clamp(r.Left, b.minLeft, b.maxLeft)
	r.Top = clamp(r.Top, b.minTop, b.maxTop)
	return r
}

func (m *Manager) byZLocked() []*window {
	ws := make([]*window, 0, len(m.windows))
	for _, w := range m.windows {
		ws = append(ws, w)
	}
	slices.SortFunc(ws, func(a, b *window) int { return cmp.Compare(b.z, a.z) })
	return ws
}

func (m *Manager) iconOrderLocked() []string {
	ws := make([]*window, 0, len(m.windows))
	for _, w := range m.windows {
		ws = append(ws, w)
	}
	slices.SortFunc(ws, func(a, b *window) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	ids := make([]string, len(ws))
	for i, w := range ws {
		ids[i] = w.id
	}
	return ids
}

func (m *Manager) menuLocked() []MenuEntry {
	ws := m.byZLocked()
	out := make([]MenuEntry, 0, len(ws))
	for _, w := range ws {
		label := w.title
		if w.minimized {
			label = "◊ " + label
		}
		out = append(out, MenuEntry{ID: w.id, Label: label})
	}
	return out
}

type update struct {
	icons []layout.Icon
	menu  []MenuEntry
}

// updateLocked re-renders icons for the live windows and rebuilds the menu.
func (m *Manager) updateLocked() update {
	order := m.iconOrderLocked()
	meta := make(map[string]layout.Meta, len(order))
	for _, id := range order {
		w := m.windows[id]
		meta[id] = layout.Meta{Title: w.title, Kind: string(w.kind)}
	}
	c := m.cells
	c.Width, c.Height = m.desk.Width, m.desk.Height
	return update{icons: m.icons.Render(order, meta, c), menu: m.menuLocked()}
}

func (m *Manager) publish(evs []sse.Event, u update) {
	if m.events == nil {
		return
	}
	for _, ev := range evs {
		m.events.Publish(ev)
	}
	m.events.Publish(sse.Event{Type: sse.TopicWindowsMenu, Data: u.menu})
	m.events.PublishIcons(u.icons)
}

func windowEvent(topic string, w *window) sse.Event {
	return sse.Event{Type: topic, Data: map[string]string{"id": w.id, "kind": string(w.kind), "title": w.title}}
}

type host struct {
	m  *Manager
	id string
}

func (h host) ID() string              { return h.id }
func (h host) SetTitle(title string)   { h.m.SetTitle(h.id, title) }
func (h host) SetStatus(status string) { h.m.setStatus(h.id, status) }
