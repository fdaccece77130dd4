package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
)

// FilesHandler serves blobs of stores that live in this process. Files
// without public read need a signed URL when a signer is enabled.
type FilesHandler struct {
	files  simpleblog.FileReader
	signer *presigned.Signer
}

func NewFilesHandler(files simpleblog.FileReader, signer *presigned.Signer) *FilesHandler {
	return &FilesHandler{files: files, signer: signer}
}

// Routes returns the router for storage endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/buckets/{bucket_id}/files/{file_id}/view", h.ServeFile)
	r.Get("/buckets/{bucket_id}/files/{file_id}/preview", h.ServeFile)
	return r
}

// ServeFile streams a file inline. Previews are served as the original
// bytes; the width, height, gravity and quality parameters are accepted but
// no resizing is applied.
func (h *FilesHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	bucketID := chi.URLParam(r, "bucket_id")
	fileID := chi.URLParam(r, "file_id")

	file, err := h.files.GetFile(r.Context(), bucketID, fileID)
	if err != nil {
		h.fileError(w, r, fileID, err)
		return
	}

	if !simpleblog.IsPublic(file.Permissions) && h.signer.IsEnabled() {
		if err := h.signer.ValidateRequest(r); err != nil {
			slog.Warn("Rejected file request", "file_id", fileID, "error", err)
			if presigned.IsAuthError(err) {
				renderError(w, r, http.StatusForbidden, "Invalid or expired signature")
			} else {
				renderError(w, r, http.StatusInternalServerError, "Failed to validate signature")
			}
			return
		}
	}

	body, file, err := h.files.ReadFile(r.Context(), bucketID, fileID)
	if err != nil {
		h.fileError(w, r, fileID, err)
		return
	}
	defer body.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	if file.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": file.Name}))
	}
	if simpleblog.IsPublic(file.Permissions) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "private, no-store")
	}

	if _, err := io.Copy(w, body); err != nil {
		slog.Error("Failed to stream file", "file_id", fileID, "error", err)
	}
}

func (h *FilesHandler) fileError(w http.ResponseWriter, r *http.Request, fileID string, err error) {
	if errors.Is(err, simpleblog.ErrFileNotFound) {
		renderError(w, r, http.StatusNotFound, "File not found")
		return
	}
	slog.Error("Failed to read file", "file_id", fileID, "error", err)
	renderError(w, r, http.StatusInternalServerError, "Failed to read file")
}
