package api

import (
	"github.com/starford/hedgey/internal/layout"
	"github.com/starford/hedgey/internal/models"
	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/vfs"
	"github.com/starford/hedgey/internal/wm"
)

// OpenWindowRequest is the request body for spawning a window.
type OpenWindowRequest struct {
	Kind    string           `json:"kind" example:"notes" validate:"required"`
	Title   string           `json:"title,omitempty" example:"Notes"`
	URL     string           `json:"url,omitempty" example:"https://youtu.be/dQw4w9WgXcQ"`
	Section string           `json:"section,omitempty" example:"documents"`
	Notes   *wm.NotesOptions `json:"notes,omitempty"`
}

// GestureRequest is one pointer event of a drag or resize.
type GestureRequest struct {
	Phase     string `json:"phase" example:"move" validate:"required"`
	X         int    `json:"x" example:"120"`
	Y         int    `json:"y" example:"48"`
	OnControl bool   `json:"on_control,omitempty"`
}

// Gesture phases.
const (
	PhaseBegin  = "begin"
	PhaseMove   = "move"
	PhaseEnd    = "end"
	PhaseCancel = "cancel"
)

// TitleRequest renames a window.
type TitleRequest struct {
	Title string `json:"title" example:"Documents"`
}

// NavigateRequest points a browser window at a URL.
type NavigateRequest struct {
	URL string `json:"url" example:"https://vimeo.com/76979871" validate:"required"`
}

// SelectRequest selects a row of a files window.
type SelectRequest struct {
	ID string `json:"id" example:"f0c1"`
}

// TextRequest replaces the text of a notes window.
type TextRequest struct {
	Text string `json:"text"`
}

// SaveAppRequest saves the page of a browser window as an app.
type SaveAppRequest struct {
	Name string `json:"name,omitempty" example:"Radio"`
}

// DesktopSize is the desktop viewport size.
type DesktopSize = wm.Size

// Window is a window snapshot (aliased from the window manager).
type Window = wm.Window

// Icon is a desktop icon (aliased from the layout engine).
type Icon = layout.Icon

// Record is a stored note or upload (aliased from the domain layer).
type Record = models.Record

// WindowListResponse wraps the window listing, topmost first.
type WindowListResponse struct {
	Windows []Window `json:"windows" validate:"required"`
	Active  string   `json:"active,omitempty" example:"w3"`
}

// FileListResponse wraps record listings.
type FileListResponse struct {
	Files []Record `json:"files" validate:"required"`
}

// NoteTextResponse carries decrypted note text.
type NoteTextResponse struct {
	ID   string `json:"id" example:"n0c9f2d..." validate:"required"`
	Text string `json:"text"`
}

// UploadResponse is returned after a multipart upload.
type UploadResponse struct {
	Count int `json:"count" example:"2" validate:"required"`
}

// PassphraseRequest carries a passphrase.
type PassphraseRequest struct {
	Passphrase string `json:"passphrase" validate:"required"`
}

// UnlockResponse reports whether the passphrase unlocked the filesystem.
type UnlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

// KeyStatus is the keyring state (aliased from the filesystem).
type KeyStatus = vfs.KeyStatus

// SavedAppRequest is the request body for saving an app.
type SavedAppRequest struct {
	Name string `json:"name" example:"Radio" validate:"required"`
	URL  string `json:"url" example:"radio.example.com" validate:"required"`
}

// SavedAppResponse reports whether an app was added.
type SavedAppResponse struct {
	Added bool `json:"added"`
}

// AppsResponse lists the catalogue and the saved apps.
type AppsResponse struct {
	Catalogue []registry.App      `json:"catalogue" validate:"required"`
	Saved     []registry.SavedApp `json:"saved" validate:"required"`
}

// ThemeRequest changes the theme selection.
type ThemeRequest struct {
	Theme string `json:"theme,omitempty" example:"system7"`
	Dark  *bool  `json:"dark,omitempty"`
}

// ThemeResponse describes the theme selection.
type ThemeResponse struct {
	Theme  string               `json:"theme" example:"hedgey"`
	Dark   bool                 `json:"dark"`
	Themes []registry.ThemeInfo `json:"themes"`
}

// OpenedResponse carries the id of a window opened by a menu action.
type OpenedResponse struct {
	ID string `json:"id" example:"w4" validate:"required"`
}
