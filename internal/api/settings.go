package api

import (
	"net/http"
)

// Keys handles GET /api/keys.
//
//	@Summary		Report the key state
//	@Tags			keys
//	@Produce		json
//	@Success		200	{object}	KeyStatus
//	@Security		BearerAuth
//	@Router			/keys [get]
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	st, err := h.sess.Keys().Status(r.Context())
	if err != nil {
		writeError(w, err, "key status failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetPassphrase handles POST /api/keys/passphrase, wrapping the data key.
//
//	@Summary		Protect the data key with a passphrase
//	@Tags			keys
//	@Accept			json
//	@Param			body	body	PassphraseRequest	true	"Passphrase"
//	@Success		204		"Key wrapped"
//	@Failure		400		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/keys/passphrase [post]
func (h *Handler) SetPassphrase(w http.ResponseWriter, r *http.Request) {
	var req PassphraseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sess.Keys().SetPassphrase(r.Context(), req.Passphrase); err != nil {
		writeError(w, err, "set passphrase failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /api/keys/unlock. A wrong passphrase is not an error.
//
//	@Summary		Unlock the data key
//	@Tags			keys
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PassphraseRequest	true	"Passphrase"
//	@Success		200		{object}	UnlockResponse
//	@Security		BearerAuth
//	@Router			/keys/unlock [post]
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req PassphraseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok, err := h.sess.Keys().Unlock(r.Context(), req.Passphrase)
	if err != nil {
		writeError(w, err, "unlock failed")
		return
	}
	if ok {
		h.documentsChanged()
	}
	writeJSON(w, http.StatusOK, UnlockResponse{Unlocked: ok})
}

// Lock handles POST /api/keys/lock, dropping the cached key.
func (h *Handler) Lock(w http.ResponseWriter, _ *http.Request) {
	h.sess.Keys().Lock()
	w.WriteHeader(http.StatusNoContent)
}

// Apps handles GET /api/apps.
//
//	@Summary		List catalogue and saved apps
//	@Tags			apps
//	@Produce		json
//	@Success		200	{object}	AppsResponse
//	@Security		BearerAuth
//	@Router			/apps [get]
func (h *Handler) Apps(w http.ResponseWriter, r *http.Request) {
	saved, err := h.sess.SavedApps().List(r.Context())
	if err != nil {
		writeError(w, err, "list saved apps failed")
		return
	}
	writeJSON(w, http.StatusOK, AppsResponse{Catalogue: h.sess.Catalogue().List(), Saved: saved})
}

// SavedApps handles GET /api/apps/saved.
func (h *Handler) SavedApps(w http.ResponseWriter, r *http.Request) {
	saved, err := h.sess.SavedApps().List(r.Context())
	if err != nil {
		writeError(w, err, "list saved apps failed")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// UpsertSavedApp handles POST /api/apps/saved.
//
//	@Summary		Save or rename an app
//	@Tags			apps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SavedAppRequest	true	"App"
//	@Success		200		{object}	SavedAppResponse
//	@Security		BearerAuth
//	@Router			/apps/saved [post]
func (h *Handler) UpsertSavedApp(w http.ResponseWriter, r *http.Request) {
	var req SavedAppRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	added, err := h.sess.SavedApps().Upsert(r.Context(), req.Name, req.URL)
	if err != nil {
		writeError(w, err, "save app failed")
		return
	}
	writeJSON(w, http.StatusOK, SavedAppResponse{Added: added})
}

// Theme handles GET /api/theme.
//
//	@Summary		Describe the theme selection
//	@Tags			theme
//	@Produce		json
//	@Success		200	{object}	ThemeResponse
//	@Security		BearerAuth
//	@Router			/theme [get]
func (h *Handler) Theme(w http.ResponseWriter, r *http.Request) {
	h.writeTheme(w, r)
}

// SetTheme handles PUT /api/theme. Omitted fields are left unchanged.
//
//	@Summary		Change theme or dark mode
//	@Tags			theme
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ThemeRequest	true	"Theme selection"
//	@Success		200		{object}	ThemeResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/theme [put]
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	themes := h.sess.Themes()
	if req.Theme != "" {
		if err := h.sess.SetTheme(r.Context(), req.Theme); err != nil {
			writeError(w, err, "set theme failed")
			return
		}
	}
	if req.Dark != nil {
		if err := themes.SetDark(r.Context(), *req.Dark); err != nil {
			writeError(w, err, "set dark mode failed")
			return
		}
	}
	h.writeTheme(w, r)
}

func (h *Handler) writeTheme(w http.ResponseWriter, r *http.Request) {
	themes := h.sess.Themes()
	name, err := themes.Theme(r.Context())
	if err != nil {
		writeError(w, err, "read theme failed")
		return
	}
	dark, err := themes.Dark(r.Context())
	if err != nil {
		writeError(w, err, "read dark mode failed")
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: name, Dark: dark, Themes: themes.List()})
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.sess.Files().DesktopTags(r.Context())
	if err != nil {
		writeError(w, err, "read tags failed")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// SetTags handles PUT /api/tags, replacing the tag index.
func (h *Handler) SetTags(w http.ResponseWriter, r *http.Request) {
	var req map[string][]string
	if !decodeJSON(w, r, &req) {
		return
	}
	fs := h.sess.Files()
	if err := fs.SetDesktopTags(r.Context(), req); err != nil {
		writeError(w, err, "write tags failed")
		return
	}
	tags, err := fs.DesktopTags(r.Context())
	if err != nil {
		writeError(w, err, "read tags failed")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
