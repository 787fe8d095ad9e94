package wm

const (
	tiltX   = 0.05
	tiltY   = 0.02
	tiltMax = 8.0
)

type bounds struct {
	minLeft, maxLeft int
	minTop, maxTop   int
}

// dragBoundsLocked keeps at least dragKeep pixels of a window on screen and
// lets it hang off the left and top edges by up to 40% of the desktop.
func (m *Manager) dragBoundsLocked() bounds {
	offX := int(float64(m.desk.Width) * dragOffFrac)
	offY := int(float64(m.desk.Height) * dragOffFrac)
	return bounds{
		minLeft: -offX,
		maxLeft: m.desk.Width - dragKeep,
		minTop:  -offY,
		maxTop:  m.desk.Height - dragKeep,
	}
}

func tiltKey(id string) string { return "tilt:" + id }

// BeginDrag starts moving id from the pointer position at. The window is
// focused either way; the drag is refused when the pointer is on a title bar
// control or the window is maximized or minimized.
func (m *Manager) BeginDrag(id string, at Point, onControl bool) bool {
	m.Focus(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || onControl || w.maximized || w.minimized || w.closing {
		return false
	}
	w.resize = nil
	w.drag = &gesture{start: at, last: at, rect: w.rect}
	return true
}

// DragMove moves the dragged window to follow the pointer, clamped to the
// loose drag bounds, and schedules a tilt update for the next frame.
func (m *Manager) DragMove(id string, at Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || w.drag == nil {
		return
	}
	g := w.drag
	b := m.dragBoundsLocked()
	w.rect.Left = clamp(g.rect.Left+at.X-g.start.X, b.minLeft, b.maxLeft)
	w.rect.Top = clamp(g.rect.Top+at.Y-g.start.Y, b.minTop, b.maxTop)

	tilt := tiltFor(at.X-g.last.X, at.Y-g.last.Y)
	g.last = at
	m.sched.Request(tiltKey(id), func() { m.applyTilt(id, tilt) })
}

// EndDrag commits the current position and clears the tilt.
func (m *Manager) EndDrag(id string) { m.stopDrag(id) }

// CancelDrag ends a drag the pointer lost; the last position is kept.
func (m *Manager) CancelDrag(id string) { m.stopDrag(id) }

func (m *Manager) stopDrag(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || w.drag == nil {
		return
	}
	w.drag = nil
	w.tilt = 0
	m.sched.Cancel(tiltKey(id))
}

func (m *Manager) applyTilt(id string, tilt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[id]; ok && w.drag != nil {
		w.tilt = tilt
	}
}

func tiltFor(dx, dy int) float64 {
	t := float64(dx)*tiltX + float64(dy)*tiltY
	return max(-tiltMax, min(tiltMax, t))
}

// BeginResize starts resizing id from the grip. Refused while maximized.
func (m *Manager) BeginResize(id string, at Point) bool {
	m.Focus(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || w.maximized || w.minimized || w.closing {
		return false
	}
	w.drag = nil
	w.resize = &gesture{start: at, last: at, rect: w.rect}
	return true
}

// ResizeMove sizes the window to follow the pointer. Width and height stay
// at or above the minimum and within what the desktop can show from the
// window's current position.
func (m *Manager) ResizeMove(id string, at Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || w.resize == nil {
		return
	}
	g := w.resize
	maxW := m.desk.Width + max(0, -w.rect.Left)
	maxH := m.desk.Height + max(0, -w.rect.Top)
	w.rect.Width = clamp(g.rect.Width+at.X-g.start.X, MinWidth, max(MinWidth, maxW))
	w.rect.Height = clamp(g.rect.Height+at.Y-g.start.Y, MinHeight, max(MinHeight, maxH))
	g.last = at
}

// EndResize commits the current size.
func (m *Manager) EndResize(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[id]; ok {
		w.resize = nil
	}
}

func (m *Manager) endGesturesLocked(w *window) {
	w.drag = nil
	w.resize = nil
	w.tilt = 0
	m.sched.Cancel(tiltKey(w.id))
}
