package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/desktop"
	"github.com/starford/hedgey/internal/wm"
)

// Handler holds API route handlers.
type Handler struct {
	sess *desktop.Session
}

// NewHandler creates a new Handler.
func NewHandler(sess *desktop.Session) *Handler {
	return &Handler{sess: sess}
}

func (h *Handler) wm() *wm.Manager { return h.sess.Manager() }

// window resolves {id} or writes 404.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) (wm.Window, bool) {
	win, ok := h.wm().Window(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("window not found"))
	}
	return win, ok
}

// ListWindows handles GET /api/windows.
//
//	@Summary		List windows, topmost first
//	@Tags			windows
//	@Produce		json
//	@Success		200	{object}	WindowListResponse
//	@Security		BearerAuth
//	@Router			/windows [get]
func (h *Handler) ListWindows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, WindowListResponse{Windows: h.wm().Windows(), Active: h.wm().Active()})
}

// OpenWindow handles POST /api/windows.
//
//	@Summary		Spawn a window
//	@Tags			windows
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenWindowRequest	true	"Window to open"
//	@Success		201		{object}	Window
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/windows [post]
func (h *Handler) OpenWindow(w http.ResponseWriter, r *http.Request) {
	var req OpenWindowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("kind is required"))
		return
	}
	opts := wm.Options{URL: req.URL, Section: req.Section}
	if req.Notes != nil {
		opts.Notes = *req.Notes
	}
	id := h.wm().Spawn(r.Context(), wm.ParseKind(req.Kind), req.Title, opts)
	win, _ := h.wm().Window(id)
	writeJSON(w, http.StatusCreated, win)
}

// GetWindow handles GET /api/windows/{id}.
//
//	@Summary		Get a window snapshot
//	@Tags			windows
//	@Produce		json
//	@Param			id	path		string	true	"Window id"
//	@Success		200	{object}	Window
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/windows/{id} [get]
func (h *Handler) GetWindow(w http.ResponseWriter, r *http.Request) {
	if win, ok := h.window(w, r); ok {
		writeJSON(w, http.StatusOK, win)
	}
}

// WindowAction handles POST /api/windows/{id}/{action} for focus, minimize,
// restore, reveal, zoom and close.
//
//	@Summary		Apply a window-chrome action
//	@Tags			windows
//	@Produce		json
//	@Param			id		path		string	true	"Window id"
//	@Param			action	path		string	true	"Action"	Enums(focus, minimize, restore, reveal, zoom, close)
//	@Success		200		{object}	Window
//	@Success		204		"Window closed"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/windows/{id}/{action} [post]
func (h *Handler) WindowAction(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	m := h.wm()
	switch chi.URLParam(r, "action") {
	case "focus":
		m.Focus(win.ID)
	case "minimize":
		m.Minimize(win.ID)
	case "restore":
		m.Restore(win.ID)
	case "reveal":
		m.Reveal(win.ID)
	case "zoom":
		m.ToggleZoom(win.ID)
	case "close":
		m.Close(win.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown action"))
		return
	}
	h.writeWindow(w, win.ID)
}

// Drag handles POST /api/windows/{id}/drag.
//
//	@Summary		Feed a title-bar drag gesture
//	@Tags			windows
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Window id"
//	@Param			body	body		GestureRequest	true	"Pointer event"
//	@Success		200		{object}	Window
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/windows/{id}/drag [post]
func (h *Handler) Drag(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	var req GestureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := h.wm()
	at := wm.Point{X: req.X, Y: req.Y}
	switch req.Phase {
	case PhaseBegin:
		if !m.BeginDrag(win.ID, at, req.OnControl) {
			writeJSON(w, http.StatusConflict, errorBody("drag refused"))
			return
		}
	case PhaseMove:
		m.DragMove(win.ID, at)
	case PhaseEnd:
		m.EndDrag(win.ID)
	case PhaseCancel:
		m.CancelDrag(win.ID)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown phase"))
		return
	}
	h.writeWindow(w, win.ID)
}

// Resize handles POST /api/windows/{id}/resize.
//
//	@Summary		Feed a grip resize gesture
//	@Tags			windows
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Window id"
//	@Param			body	body		GestureRequest	true	"Pointer event"
//	@Success		200		{object}	Window
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/windows/{id}/resize [post]
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	var req GestureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := h.wm()
	at := wm.Point{X: req.X, Y: req.Y}
	switch req.Phase {
	case PhaseBegin:
		if !m.BeginResize(win.ID, at) {
			writeJSON(w, http.StatusConflict, errorBody("resize refused"))
			return
		}
	case PhaseMove:
		m.ResizeMove(win.ID, at)
	case PhaseEnd, PhaseCancel:
		m.EndResize(win.ID)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown phase"))
		return
	}
	h.writeWindow(w, win.ID)
}

// SetTitle handles PUT /api/windows/{id}/title.
func (h *Handler) SetTitle(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	var req TitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.wm().SetTitle(win.ID, req.Title)
	h.writeWindow(w, win.ID)
}

// Navigate handles POST /api/windows/{id}/navigate for browser windows.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	b, id, ok := contentAs[*wm.Browser](h, w, r)
	if !ok {
		return
	}
	var req NavigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b.Navigate(req.URL)
	h.writeWindow(w, id)
}

// SaveApp handles POST /api/windows/{id}/save-app for browser windows.
func (h *Handler) SaveApp(w http.ResponseWriter, r *http.Request) {
	b, _, ok := contentAs[*wm.Browser](h, w, r)
	if !ok {
		return
	}
	var req SaveAppRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	added, err := b.SaveAsApp(r.Context(), req.Name)
	if err != nil {
		writeError(w, err, "save app failed")
		return
	}
	writeJSON(w, http.StatusOK, SavedAppResponse{Added: added})
}

// EditText handles PUT /api/windows/{id}/text for notes windows. The text
// is autosaved after the debounce delay.
func (h *Handler) EditText(w http.ResponseWriter, r *http.Request) {
	n, id, ok := contentAs[*wm.Notes](h, w, r)
	if !ok {
		return
	}
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n.Edit(req.Text)
	h.writeWindow(w, id)
}

// Flush handles POST /api/windows/{id}/flush, saving a notes window's
// pending edits without waiting for the autosave delay.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	n, id, ok := contentAs[*wm.Notes](h, w, r)
	if !ok {
		return
	}
	n.Flush(r.Context())
	h.documentsChanged()
	h.writeWindow(w, id)
}

// Select handles POST /api/windows/{id}/select for files windows.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	f, id, ok := contentAs[*wm.Finder](h, w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !f.Select(req.ID) {
		writeJSON(w, http.StatusNotFound, errorBody("no such item"))
		return
	}
	h.writeWindow(w, id)
}

// ApplyTheme handles POST /api/windows/{id}/theme for themes windows. Other
// open themes windows follow the new selection.
func (h *Handler) ApplyTheme(w http.ResponseWriter, r *http.Request) {
	p, id, ok := contentAs[*wm.ThemesPanel](h, w, r)
	if !ok {
		return
	}
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := p.Apply(r.Context(), req.Theme); err != nil {
		writeError(w, err, "apply theme failed", slog.String("id", id))
		return
	}
	h.sess.SyncThemes(r.Context())
	h.writeWindow(w, id)
}

// WindowAt handles GET /api/windows/at?x=&y=&kind=.
//
//	@Summary		Find the topmost drop-target window under a point
//	@Tags			windows
//	@Produce		json
//	@Param			x		query		int		true	"X"
//	@Param			y		query		int		true	"Y"
//	@Param			kind	query		string	false	"Window kinds (repeatable)"
//	@Success		200		{object}	Window
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/windows/at [get]
func (h *Handler) WindowAt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errX != nil || errY != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("x and y are required"))
		return
	}
	var kinds []wm.Kind
	for _, k := range q["kind"] {
		kinds = append(kinds, wm.Kind(k))
	}
	id, ok := h.wm().TopmostAt(x, y, kinds...)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no window at point"))
		return
	}
	h.writeWindow(w, id)
}

// GetDesktop handles GET /api/desktop.
func (h *Handler) GetDesktop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wm().Desktop())
}

// PutDesktop handles PUT /api/desktop, recording a viewport resize.
//
//	@Summary		Set the desktop size
//	@Tags			desktop
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DesktopSize	true	"Viewport size"
//	@Success		200		{object}	DesktopSize
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/desktop [put]
func (h *Handler) PutDesktop(w http.ResponseWriter, r *http.Request) {
	var req DesktopSize
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("width and height must be positive"))
		return
	}
	h.wm().SetDesktopSize(req.Width, req.Height)
	writeJSON(w, http.StatusOK, h.wm().Desktop())
}

// Icons handles GET /api/icons.
//
//	@Summary		List desktop icons in layout order
//	@Tags			desktop
//	@Produce		json
//	@Success		200	{array}	Icon
//	@Security		BearerAuth
//	@Router			/icons [get]
func (h *Handler) Icons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wm().RefreshIcons())
}

// OpenWindowsMenu handles GET /api/menu/windows.
func (h *Handler) OpenWindowsMenu(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wm().RefreshOpenWindowsMenu())
}

// Menu handles POST /api/menu, dispatching a menu click.
//
//	@Summary		Dispatch a menu action
//	@Tags			desktop
//	@Accept			json
//	@Produce		json
//	@Param			body	body		desktop.Request	true	"Menu request"
//	@Success		201		{object}	OpenedResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/menu [post]
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	var req desktop.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.sess.Dispatch(r.Context(), req)
	if err != nil {
		writeError(w, err, "menu dispatch failed", slog.String("action", req.Action), slog.String("app", req.App))
		return
	}
	writeJSON(w, http.StatusCreated, OpenedResponse{ID: id})
}

func (h *Handler) writeWindow(w http.ResponseWriter, id string) {
	win, ok := h.wm().Window(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("window not found"))
		return
	}
	writeJSON(w, http.StatusOK, win)
}

// contentAs resolves {id} to its content of type T, writing 404 for unknown
// windows and 409 when the window shows something else.
func contentAs[T wm.Content](h *Handler, w http.ResponseWriter, r *http.Request) (T, string, bool) {
	var zero T
	id := chi.URLParam(r, "id")
	c, ok := h.wm().ContentOf(id)
	if !ok {
		writeError(w, apperr.ErrNotFound, "content lookup")
		return zero, id, false
	}
	t, ok := c.(T)
	if !ok {
		writeError(w, fmt.Errorf("%w: window %s does not support this operation", apperr.ErrConflict, id), "content lookup")
		return zero, id, false
	}
	return t, id, true
}

func (h *Handler) documentsChanged() { h.sess.Bus().DocumentsChanged() }
