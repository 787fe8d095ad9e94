package desktop

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/storage"
	"github.com/starford/hedgey/internal/vfs"
	"github.com/starford/hedgey/internal/wm"
)

func openSession(t *testing.T, path string, opts ...Option) *Session {
	t.Helper()
	db, err := vfs.Open(path)
	require.NoError(t, err)
	s := New(db, append([]Option{WithIterations(1000), WithIconsThrottle(time.Millisecond)}, opts...)...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	return openSession(t, filepath.Join(t.TempDir(), "hedgey.db"), opts...)
}

func waitNotes(t *testing.T, s *Session, id string) *wm.Notes {
	t.Helper()
	c, ok := s.Manager().ContentOf(id)
	require.True(t, ok)
	n, ok := c.(*wm.Notes)
	require.True(t, ok)
	select {
	case <-n.Loaded():
	case <-time.After(5 * time.Second):
		t.Fatal("notes did not load")
	}
	return n
}

func windowsOfKind(s *Session, kind wm.Kind) []wm.Window {
	var out []wm.Window
	for _, w := range s.Manager().Windows() {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestBoot_FirstAndLater(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hedgey.db")

	s := openSession(t, path)
	require.NoError(t, s.Boot(ctx))
	require.Len(t, s.Manager().Windows(), 2)
	require.Len(t, windowsOfKind(s, wm.KindFiles), 1)
	notes := windowsOfKind(s, wm.KindNotes)
	require.Len(t, notes, 1)

	n := waitNotes(t, s, notes[0].ID)
	assert.Equal(t, WelcomeText, n.State().(wm.NotesState).Text)
	assert.Eventually(t, func() bool { return s.Toast() == NoticeText }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())

	s = openSession(t, path)
	require.NoError(t, s.Boot(ctx))
	notes = windowsOfKind(s, wm.KindNotes)
	require.Len(t, notes, 1)
	n = waitNotes(t, s, notes[0].ID)
	w, _ := s.Manager().Window(notes[0].ID)
	assert.Equal(t, "Loaded", w.Status)
	assert.Equal(t, WelcomeText, n.State().(wm.NotesState).Text)

	list, err := s.Files().ListNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Empty(t, s.Toast(), "notice is shown once per data directory")
}

func TestHandleDroppedFiles(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	n, err := s.HandleDroppedFiles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, s.Manager().Windows())

	n, err = s.HandleDroppedFiles(ctx, []vfs.Upload{
		{Name: "a.png", Type: "image/png", Data: []byte{1, 2, 3}},
		{Name: "b.txt", Data: []byte("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	uploads, err := s.Files().ListUploads(ctx)
	require.NoError(t, err)
	assert.Len(t, uploads, 2)

	files := windowsOfKind(s, wm.KindFiles)
	require.Len(t, files, 1)
	assert.Equal(t, wm.SectionDocuments, files[0].Section)
	assert.True(t, files[0].Active)

	// A second drop reuses the documents window.
	_, err = s.HandleDroppedFiles(ctx, []vfs.Upload{{Name: "c.bin", Data: []byte{0}}})
	require.NoError(t, err)
	assert.Len(t, windowsOfKind(s, wm.KindFiles), 1)
	assert.Eventually(t, func() bool {
		w, _ := s.Manager().Window(files[0].ID)
		return w.Status == "3 items"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, WithApps([]registry.App{
		{ID: "about", Title: "About HedgeyOS", URL: "/about.html"},
		{ID: "radio", Title: "Radio", URL: "https://radio.example"},
	}))

	id, err := s.Dispatch(ctx, Request{Action: ActionNewFiles})
	require.NoError(t, err)
	w, _ := s.Manager().Window(id)
	assert.Equal(t, wm.KindFiles, w.Kind)

	id, err = s.Dispatch(ctx, Request{Action: ActionAboutSystem})
	require.NoError(t, err)
	w, _ = s.Manager().Window(id)
	assert.Equal(t, "About", w.Title)
	assert.Equal(t, wm.AppState{URL: "/about.html"}, w.Content)

	id, err = s.Dispatch(ctx, Request{App: "radio"})
	require.NoError(t, err)
	w, _ = s.Manager().Window(id)
	assert.Equal(t, "Radio", w.Title)

	id, err = s.Dispatch(ctx, Request{App: "browser"})
	require.NoError(t, err)
	w, _ = s.Manager().Window(id)
	assert.Equal(t, wm.KindBrowser, w.Kind)

	id, err = s.Dispatch(ctx, Request{SavedName: "Docs", SavedURL: "https://docs.example"})
	require.NoError(t, err)
	w, _ = s.Manager().Window(id)
	assert.Equal(t, "Docs", w.Title)

	_, err = s.Dispatch(ctx, Request{App: "nope"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Dispatch(ctx, Request{Action: "explode"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDispatch_AboutWithoutCatalogue(t *testing.T) {
	s := newSession(t)
	_, err := s.Dispatch(context.Background(), Request{Action: ActionAboutSystem})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOpenApp_SavedApp(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	_, err := s.SavedApps().Upsert(ctx, "Synth", "https://synth.example")
	require.NoError(t, err)

	id, err := s.OpenApp(ctx, "synth")
	require.NoError(t, err)
	w, _ := s.Manager().Window(id)
	assert.Equal(t, "Synth", w.Title)
	assert.Equal(t, wm.AppState{URL: "https://synth.example"}, w.Content)
}

func TestOpenAppEvent(t *testing.T) {
	s := newSession(t)
	s.Bus().OpenApp("terminal")
	assert.Eventually(t, func() bool {
		return len(windowsOfKind(s, wm.KindTerminal)) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDocumentsChangedRefreshesFinders(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	id := s.Manager().CreateFilesWindow(ctx)
	w, _ := s.Manager().Window(id)
	assert.Equal(t, "0 items", w.Status)

	_, err := s.Files().SaveNote(ctx, vfs.NoteInput{Name: "todo", Content: "milk"})
	require.NoError(t, err)
	s.Bus().DocumentsChanged()

	assert.Eventually(t, func() bool {
		w, _ := s.Manager().Window(id)
		return w.Status == "1 items"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	require.NoError(t, err)
	s := newSession(t, WithDownloads(fs))

	rec, err := s.Files().SaveUpload(ctx, vfs.Upload{Name: "song.mp3", Data: []byte("la")})
	require.NoError(t, err)

	path, ok, err := s.Download(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	data, err := fs.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "la", string(data))

	_, ok, err = s.Download(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClose_Idempotent(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
