package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/hedgey/internal/desktop"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// The session's event bus is served at GET /events inside the auth group.
func NewRouter(sess *desktop.Session, authEnabled bool, token string) chi.Router {
	h := NewHandler(sess)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Windows.
	r.Get("/windows", h.ListWindows)
	r.Post("/windows", h.OpenWindow)
	r.Get("/windows/at", h.WindowAt)
	r.Get("/windows/{id}", h.GetWindow)
	r.Post("/windows/{id}/drag", h.Drag)
	r.Post("/windows/{id}/resize", h.Resize)
	r.Put("/windows/{id}/title", h.SetTitle)
	r.Put("/windows/{id}/text", h.EditText)
	r.Post("/windows/{id}/flush", h.Flush)
	r.Post("/windows/{id}/select", h.Select)
	r.Post("/windows/{id}/theme", h.ApplyTheme)
	r.Post("/windows/{id}/navigate", h.Navigate)
	r.Post("/windows/{id}/save-app", h.SaveApp)
	r.Post("/windows/{id}/{action}", h.WindowAction)

	// Desktop and menus.
	r.Get("/desktop", h.GetDesktop)
	r.Put("/desktop", h.PutDesktop)
	r.Get("/icons", h.Icons)
	r.Get("/menu/windows", h.OpenWindowsMenu)
	r.Post("/menu", h.Menu)

	// Files and notes.
	r.Get("/files", h.ListFiles)
	r.Get("/files/{id}", h.GetFile)
	r.Delete("/files/{id}", h.DeleteFile)
	r.Get("/files/{id}/download", h.Download)
	r.Post("/files/{id}/export", h.Export)
	r.Post("/notes", h.SaveNote)
	r.Get("/notes/{id}/text", h.NoteText)
	r.Post("/uploads", h.Upload)

	// Keys.
	r.Get("/keys", h.Keys)
	r.Post("/keys/passphrase", h.SetPassphrase)
	r.Post("/keys/unlock", h.Unlock)
	r.Post("/keys/lock", h.Lock)

	// Registries.
	r.Get("/apps", h.Apps)
	r.Get("/apps/saved", h.SavedApps)
	r.Post("/apps/saved", h.UpsertSavedApp)
	r.Get("/theme", h.Theme)
	r.Put("/theme", h.SetTheme)
	r.Get("/tags", h.Tags)
	r.Put("/tags", h.SetTags)

	// SSE endpoint (protected by same auth middleware).
	r.Get("/events", sess.Bus().ServeHTTP)

	return r
}
