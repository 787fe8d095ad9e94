// Package inbox imports files dropped into a watched directory as encrypted
// uploads, the same way files dropped on the desktop are imported.
package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/hedgey/internal/checksum"
	"github.com/starford/hedgey/internal/storage"
	"github.com/starford/hedgey/internal/vfs"
)

// DefaultSettle is how long a path must stay quiet before it is imported.
const DefaultSettle = 250 * time.Millisecond

// Importer stores dropped files.
type Importer interface {
	HandleDroppedFiles(ctx context.Context, files []vfs.Upload) (int, error)
}

// Watcher moves files from an inbox directory into the filesystem.
type Watcher struct {
	root   string
	store  storage.Provider
	sink   Importer
	log    *slog.Logger
	settle time.Duration

	seen map[string]string // path -> checksum of the last import attempt
}

// New returns a watcher over the inbox at root. Files are read and removed
// through store, which must be rooted at the same directory.
func New(root string, store storage.Provider, sink Importer, logger *slog.Logger, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:   root,
		store:  store,
		sink:   sink,
		log:    logger,
		settle: settle,
		seen:   make(map[string]string),
	}
}

// Run imports whatever is already in the inbox, then watches it until ctx
// is cancelled. Subdirectories created at runtime are watched too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.log.Info("inbox: started", slog.String("root", w.root))

	w.sweep(ctx)

	timers := make(map[string]*time.Timer)
	due := make(chan string, 64)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(rel string) {
		if t, ok := timers[rel]; ok {
			t.Reset(w.settle)
			return
		}
		timers[rel] = time.AfterFunc(w.settle, func() {
			select {
			case due <- rel:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("inbox: stopped")
			return nil

		case rel := <-due:
			delete(timers, rel)
			w.importFiles(ctx, []string{rel})

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, statErr := os.Stat(ev.Name)
			if statErr != nil {
				continue
			}
			if info.IsDir() {
				if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
					w.log.Warn("inbox: watch new dir",
						slog.String("path", ev.Name),
						slog.String("error", addErr.Error()))
				}
				w.sweep(ctx)
				continue
			}
			if !info.Mode().IsRegular() || skipName(filepath.Base(ev.Name)) {
				continue
			}
			rel, relErr := filepath.Rel(w.root, ev.Name)
			if relErr != nil {
				continue
			}
			schedule(rel)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	metas, err := w.store.List("")
	if err != nil {
		w.log.Warn("inbox: list", slog.String("error", err.Error()))
		return
	}
	var paths []string
	for _, m := range metas {
		if !skipName(filepath.Base(m.Path)) {
			paths = append(paths, m.Path)
		}
	}
	if len(paths) > 0 {
		w.importFiles(ctx, paths)
	}
}

// importFiles stores each file and removes it from the inbox once stored.
// A file whose content did not change since a failed attempt is not retried.
func (w *Watcher) importFiles(ctx context.Context, paths []string) {
	imported := 0
	for _, rel := range paths {
		data, err := w.store.Read(rel)
		if err != nil {
			w.log.Warn("inbox: read", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		sum := checksum.Sum(data)
		if w.seen[rel] == sum {
			continue
		}
		w.seen[rel] = sum

		up := vfs.Upload{Name: filepath.Base(rel), Type: contentType(rel, data), Data: data}
		if _, err := w.sink.HandleDroppedFiles(ctx, []vfs.Upload{up}); err != nil {
			w.log.Error("inbox: import", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		imported++
		if err := w.store.Delete(rel); err != nil {
			w.log.Warn("inbox: remove imported", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		delete(w.seen, rel)
	}
	if imported > 0 {
		w.log.Info("inbox: imported", slog.Int("count", imported))
	}
}

func contentType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
