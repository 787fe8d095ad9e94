package wm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/hedgey/internal/vfs"
)

// DefaultNoteName names the scratch note a Notes window edits when no id is given.
const DefaultNoteName = "Notes"

const (
	defaultAutosave = time.Second
	unmountFlush    = 5 * time.Second
)

// NotesOptions configure a Notes window.
type NotesOptions struct {
	// ID of the note to edit. Empty selects the note named Name.
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// Prefill is written when no saved note exists, or always with ForcePrefill.
	Prefill      *string `json:"prefill,omitempty"`
	ForcePrefill bool    `json:"force_prefill,omitempty"`
}

// Notes edits one encrypted note with debounced autosave.
type Notes struct {
	store NoteStore
	opts  NotesOptions
	delay time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	host    Host
	noteID  string
	name    string
	text    string
	dirty   bool
	timer   *time.Timer
	cancel  context.CancelFunc
	loaded  chan struct{}
	closed  bool
	saveMu  sync.Mutex // one save at a time
	baseCtx context.Context
}

// NotesState is the client view of a Notes window.
type NotesState struct {
	NoteID string `json:"note_id,omitempty"`
	Name   string `json:"name"`
	Text   string `json:"text"`
	Dirty  bool   `json:"dirty"`
}

func (n *Notes) Kind() Kind { return KindNotes }

// Mount starts loading the note in the background; the load waits for the
// filesystem to be unlocked without holding up the window. Mount after
// Unmount does nothing.
func (n *Notes) Mount(ctx context.Context, host Host) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.host = host
	n.name = strings.TrimSpace(n.opts.Name)
	if n.name == "" {
		n.name = DefaultNoteName
	}
	n.noteID = n.opts.ID
	n.baseCtx = base
	n.cancel = cancel
	n.loaded = make(chan struct{})
	if n.delay <= 0 {
		n.delay = defaultAutosave
	}
	loaded := n.loaded
	n.mu.Unlock()

	host.SetStatus("Loading...")
	go func() {
		defer close(loaded)
		n.load(base)
	}()
	return nil
}

// Loaded is closed once the initial load finished.
func (n *Notes) Loaded() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded
}

func (n *Notes) load(ctx context.Context) {
	if n.store == nil {
		n.setStatus("No storage")
		return
	}
	saved, found, err := n.findSaved(ctx)
	if err != nil {
		if ctx.Err() == nil {
			n.log.Error("notes: load", slog.String("error", err.Error()))
			n.setStatus("Could not load")
		}
		return
	}

	switch {
	case found && !n.opts.ForcePrefill:
		n.mu.Lock()
		if !n.dirty {
			n.text = saved
		}
		n.mu.Unlock()
		n.setStatus("Loaded")
	case n.opts.Prefill != nil:
		n.mu.Lock()
		n.text = *n.opts.Prefill
		n.dirty = true
		n.mu.Unlock()
		n.save(ctx)
	default:
		n.setStatus("Not saved yet")
	}
}

func (n *Notes) findSaved(ctx context.Context) (string, bool, error) {
	n.mu.Lock()
	id, name := n.noteID, n.name
	n.mu.Unlock()

	if id == "" {
		notes, err := n.store.ListNotes(ctx)
		if err != nil {
			return "", false, err
		}
		for _, r := range notes {
			if strings.EqualFold(r.Name, name) {
				id = r.ID
				break
			}
		}
		if id == "" {
			return "", false, nil
		}
	}
	text, ok, err := n.store.ReadNoteText(ctx, id)
	if err != nil || !ok {
		return "", false, err
	}
	n.mu.Lock()
	n.noteID = id
	n.mu.Unlock()
	return text, true, nil
}

// Edit replaces the text and schedules an autosave.
func (n *Notes) Edit(text string) {
	n.mu.Lock()
	n.text = text
	n.dirty = true
	if n.timer != nil {
		n.timer.Stop()
	}
	ctx := n.baseCtx
	if ctx == nil {
		n.mu.Unlock()
		return
	}
	n.timer = time.AfterFunc(n.delay, func() { n.save(ctx) })
	n.mu.Unlock()
	n.setStatus("Typing...")
}

// Flush saves pending edits now.
func (n *Notes) Flush(ctx context.Context) {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()
	n.save(ctx)
}

func (n *Notes) save(ctx context.Context) {
	n.saveMu.Lock()
	defer n.saveMu.Unlock()

	n.mu.Lock()
	if !n.dirty || n.store == nil {
		n.mu.Unlock()
		return
	}
	in := vfs.NoteInput{ID: n.noteID, Name: n.name, Content: n.text}
	n.mu.Unlock()

	rec, err := n.store.SaveNote(ctx, in)
	if err != nil || rec == nil {
		if ctx.Err() == nil {
			n.setStatus("Not saved")
		}
		return
	}

	n.mu.Lock()
	n.noteID, n.name = rec.ID, rec.Name
	n.dirty = n.text != in.Content
	n.mu.Unlock()
	n.setStatus("Saved at " + rec.UpdatedAt.Local().Format("15:04:05"))
}

// Unmount flushes pending edits and stops background work.
func (n *Notes) Unmount() {
	n.mu.Lock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	cancel := n.cancel
	n.mu.Unlock()
	if cancel == nil {
		return
	}
	ctx, stop := context.WithTimeout(context.Background(), unmountFlush)
	n.save(ctx)
	stop()
	cancel()

	n.mu.Lock()
	n.host = nil
	n.mu.Unlock()
}

func (n *Notes) State() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NotesState{NoteID: n.noteID, Name: n.name, Text: n.text, Dirty: n.dirty}
}

func (n *Notes) setStatus(s string) {
	n.mu.Lock()
	h := n.host
	n.mu.Unlock()
	if h != nil {
		h.SetStatus(s)
	}
}
