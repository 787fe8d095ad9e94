package api

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/hedgey/internal/models"
	"github.com/starford/hedgey/internal/vfs"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ListFiles handles GET /api/files.
//
//	@Summary		List stored records, newest first
//	@Tags			files
//	@Produce		json
//	@Param			kind	query		string	false	"Record kind"	Enums(note, file)
//	@Success		200		{object}	FileListResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	fs := h.sess.Files()
	var (
		rows []models.Record
		err  error
	)
	switch r.URL.Query().Get("kind") {
	case models.KindNote:
		rows, err = fs.ListNotes(r.Context())
	case models.KindFile:
		rows, err = fs.ListUploads(r.Context())
	default:
		rows, err = fs.ListFiles(r.Context())
	}
	if err != nil {
		writeError(w, err, "list files failed")
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: rows})
}

// GetFile handles GET /api/files/{id}.
//
//	@Summary		Get record metadata
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"Record id"
//	@Success		200	{object}	Record
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{id} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.sess.Files().GetFileByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "get file failed", slog.String("id", id))
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SaveNote handles POST /api/notes. An id updates that note; otherwise a new
// note is created under a unique name.
//
//	@Summary		Create or update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		vfs.NoteInput	true	"Note"
//	@Success		201		{object}	Record
//	@Failure		400		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	var req vfs.NoteInput
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.sess.Files().SaveNote(r.Context(), req)
	if err != nil {
		writeError(w, err, "save note failed", slog.String("name", req.Name))
		return
	}
	h.documentsChanged()
	writeJSON(w, http.StatusCreated, rec)
}

// NoteText handles GET /api/notes/{id}/text.
//
//	@Summary		Read decrypted note text
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteTextResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/text [get]
func (h *Handler) NoteText(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, ok, err := h.sess.Files().ReadNoteText(r.Context(), id)
	if err != nil {
		writeError(w, err, "read note failed", slog.String("id", id))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, NoteTextResponse{ID: id, Text: text})
}

// Upload handles POST /api/uploads (multipart/form-data, one or more "file"
// fields). Files are stored as if dropped on the desktop.
//
//	@Summary		Upload files
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/uploads [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}

	ups := make([]vfs.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
			return
		}
		ups = append(ups, up)
	}

	n, err := h.sess.HandleDroppedFiles(r.Context(), ups)
	if err != nil && n == 0 {
		writeError(w, err, "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Count: n})
}

func readUpload(fh *multipart.FileHeader) (vfs.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return vfs.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return vfs.Upload{}, err
	}
	return vfs.Upload{Name: fh.Filename, Type: fh.Header.Get("Content-Type"), Data: data}, nil
}

// Download handles GET /api/files/{id}/download, streaming the decrypted body.
//
//	@Summary		Download a decrypted record
//	@Tags			files
//	@Produce		octet-stream
//	@Param			id	path	string	true	"Record id"
//	@Success		200	"Decrypted body"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{id}/download [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	blob, err := h.sess.Files().ReadFileBlob(r.Context(), id)
	if err != nil {
		writeError(w, err, "download failed", slog.String("id", id))
		return
	}
	if blob == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	name := vfs.DownloadName(blob.Name)
	w.Header().Set("Content-Type", blob.Type)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// Export handles POST /api/files/{id}/export, writing the decrypted body into
// the downloads directory.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, ok, err := h.sess.Download(r.Context(), id)
	if err != nil {
		writeError(w, err, "export failed", slog.String("id", id))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// DeleteFile handles DELETE /api/files/{id}.
//
//	@Summary		Delete a record
//	@Tags			files
//	@Param			id	path	string	true	"Record id"
//	@Success		204	"Record deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{id} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sess.Files().Delete(r.Context(), id); err != nil {
		writeError(w, err, "delete file failed", slog.String("id", id))
		return
	}
	h.documentsChanged()
	w.WriteHeader(http.StatusNoContent)
}
