package vfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/models"
	"github.com/starford/hedgey/internal/storage"
)

const testIterations = 1000

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hedgey.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func newTestFS(t *testing.T, opts ...Option) *FileSystem {
	t.Helper()
	db, _ := openTestDB(t)
	return New(db, NewKeyring(db, testIterations), opts...)
}

func TestSaveNote_UniqueNames(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	a, err := fs.SaveNote(ctx, NoteInput{Name: "todo", Content: "milk"})
	require.NoError(t, err)
	b, err := fs.SaveNote(ctx, NoteInput{Name: "todo", Content: "eggs"})
	require.NoError(t, err)
	c, err := fs.SaveNote(ctx, NoteInput{Name: "TODO", Content: "bread"})
	require.NoError(t, err)

	assert.Equal(t, "todo", a.Name)
	assert.Equal(t, "todo 2", b.Name)
	assert.Equal(t, "TODO 3", c.Name)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, byte('n'), a.ID[0])

	// Re-saving under its own id keeps the name.
	again, err := fs.SaveNote(ctx, NoteInput{ID: a.ID, Name: "todo", Content: "milk and honey"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, "todo", again.Name)

	all, err := fs.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUniqueNameIsKindAgnostic(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	_, err := fs.SaveNote(ctx, NoteInput{Name: "report.txt", Content: "x"})
	require.NoError(t, err)
	up, err := fs.SaveUpload(ctx, Upload{Name: "Report.txt", Data: []byte("y")})
	require.NoError(t, err)
	assert.Equal(t, "Report.txt 2", up.Name)
}

func TestSaveNote_EmptyName(t *testing.T) {
	fs := newTestFS(t)
	rec, err := fs.SaveNote(context.Background(), NoteInput{Name: "   ", Content: "x"})
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, apperr.ErrEmptyName)
}

func TestSaveNote_RoundTripAndCiphertext(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	content := "the quick brown fox"
	rec, err := fs.SaveNote(ctx, NoteInput{Name: "fox", Content: content})
	require.NoError(t, err)
	assert.True(t, rec.Enc)
	assert.Equal(t, int64(len(content)), rec.Size)
	assert.Equal(t, "text/plain", rec.Type)
	assert.False(t, bytes.Contains(rec.Blob, []byte(content)), "blob must not hold plaintext")

	iv, err := base64.StdEncoding.DecodeString(rec.IV)
	require.NoError(t, err)
	assert.Len(t, iv, NonceLength)

	text, ok, err := fs.ReadNoteText(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, content, text)
}

func TestSave_FreshNoncePerWrite(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	seen := map[string]bool{}
	var id string
	for i := 0; i < 5; i++ {
		rec, err := fs.SaveNote(ctx, NoteInput{ID: id, Name: "same", Content: "same"})
		require.NoError(t, err)
		id = rec.ID
		assert.False(t, seen[rec.IV], "iv reused")
		seen[rec.IV] = true
	}
}

func TestSaveUpload_DefaultsAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	data := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	rec, err := fs.SaveUpload(ctx, Upload{Name: "", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", rec.Name)
	assert.Equal(t, "application/octet-stream", rec.Type)
	assert.Equal(t, models.KindFile, rec.Kind)
	assert.Equal(t, int64(len(data)), rec.Size)
	assert.Equal(t, byte('f'), rec.ID[0])

	blob, err := fs.ReadFileBlob(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, data, blob.Data)

	// A note id read as text works, an upload id does not.
	_, ok, err := fs.ReadNoteText(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListNotesAndUploads(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fs := newTestFS(t, WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	_, err := fs.SaveNote(ctx, NoteInput{Name: "a", Content: "1"})
	require.NoError(t, err)
	_, err = fs.SaveUpload(ctx, Upload{Name: "b.png", Type: "image/png", Data: []byte("2")})
	require.NoError(t, err)
	_, err = fs.SaveNote(ctx, NoteInput{Name: "c", Content: "3"})
	require.NoError(t, err)

	all, err := fs.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Name, "newest first")

	notes, err := fs.ListNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
	uploads, err := fs.ListUploads(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "image/png", uploads[0].Type)
}

func TestGetFileByID_Unknown(t *testing.T) {
	fs := newTestFS(t)
	rec, err := fs.GetFileByID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, rec)

	blob, err := fs.ReadFileBlob(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, blob)
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	dst, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	rec, err := fs.SaveNote(ctx, NoteInput{Name: "letter", Content: "dear diary"})
	require.NoError(t, err)

	path, ok, err := fs.Download(ctx, rec.ID, dst)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "letter", path)
	got, err := dst.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "dear diary", string(got))

	path, ok, err = fs.Download(ctx, rec.ID, dst)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "letter (2)", path)

	_, ok, err = fs.Download(ctx, "nope", dst)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "a.txt", DownloadName("a.txt"))
	assert.Equal(t, "passwd", DownloadName("../../etc/passwd"))
	assert.Equal(t, "evil.exe", DownloadName(`..\evil.exe`))
	assert.Equal(t, "download", DownloadName(" "))
	assert.Equal(t, "download", DownloadName(".."))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	rec, err := fs.SaveNote(ctx, NoteInput{Name: "gone", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, fs.Delete(ctx, rec.ID))
	assert.ErrorIs(t, fs.Delete(ctx, rec.ID), apperr.ErrNotFound)

	// The name is free again.
	again, err := fs.SaveNote(ctx, NoteInput{Name: "gone", Content: "y"})
	require.NoError(t, err)
	assert.Equal(t, "gone", again.Name)
}

func TestEncryptionNoticeLatchesOncePerDatabase(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	var fired atomic.Int32
	notice := WithNotice(func() { fired.Add(1) })

	fs := New(db, NewKeyring(db, testIterations), notice)
	_, err := fs.SaveNote(ctx, NoteInput{Name: "one", Content: "1"})
	require.NoError(t, err)
	_, err = fs.SaveUpload(ctx, Upload{Name: "two", Data: []byte("2")})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fired.Load())

	// A fresh session over the same database stays quiet.
	fs2 := New(db, NewKeyring(db, testIterations), notice)
	_, err = fs2.SaveNote(ctx, NoteInput{Name: "three", Content: "3"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDesktopTags(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	tags, err := fs.DesktopTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.NoError(t, fs.SetDesktopTags(ctx, map[string][]string{
		"work": {"n1", "f2"},
		"  ":   {"n3"},
		"idle": nil,
	}))
	tags, err = fs.DesktopTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"work": {"n1", "f2"}}, tags)
}

func TestReadFileBlob_TamperedCiphertext(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	fs := New(db, NewKeyring(db, testIterations))

	rec, err := fs.SaveNote(ctx, NoteInput{Name: "secret", Content: "abc"})
	require.NoError(t, err)

	row, err := db.fileByID(ctx, rec.ID)
	require.NoError(t, err)
	row.Blob[0] ^= 0xff
	require.NoError(t, db.putFile(ctx, row))

	_, err = fs.ReadFileBlob(ctx, rec.ID)
	assert.True(t, errors.Is(err, apperr.ErrDecrypt))
}

func TestSaveNote_LockDuringSave(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	_, err := fs.Keys().Key(ctx)
	require.NoError(t, err)

	// Hold the write lock so the save fetches its key and then waits.
	fs.mu.Lock()
	done := make(chan *models.Record, 1)
	go func() {
		rec, err := fs.SaveNote(ctx, NoteInput{Name: "diary", Content: "kept"})
		assert.NoError(t, err)
		done <- rec
	}()
	time.Sleep(20 * time.Millisecond)
	fs.Keys().Lock()
	fs.mu.Unlock()

	rec := <-done
	require.NotNil(t, rec)
	text, ok, err := fs.ReadNoteText(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", text)
}
