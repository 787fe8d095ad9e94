// Package testutil provides shared test helpers for setting up stores, databases and sessions.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/hedgey/internal/desktop"
	"github.com/starford/hedgey/internal/storage"
	"github.com/starford/hedgey/internal/vfs"
)

// TestIterations keeps key wrapping fast in tests.
const TestIterations = 1000

// TestDB opens a temporary SQLite database. The caller owns closing it,
// usually through a Session.
func TestDB(t *testing.T) *vfs.DB {
	t.Helper()
	db, err := vfs.Open(filepath.Join(t.TempDir(), "hedgey-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// TestStore creates a temporary directory with a storage.Provider over it.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestSession builds a session over a fresh database with fast key wrapping
// and a short icon throttle. opts are applied after those defaults.
func TestSession(t *testing.T, opts ...desktop.Option) *desktop.Session {
	t.Helper()
	base := []desktop.Option{
		desktop.WithIterations(TestIterations),
		desktop.WithIconsThrottle(time.Millisecond),
	}
	sess := desktop.New(TestDB(t), append(base, opts...)...)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}
