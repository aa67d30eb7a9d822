package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/storage"
)

// FileStore is the object storage used for listing images.
type FileStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

const immutableCache = "public, max-age=31536000, immutable"

type FileHandler struct {
	store FileStore
}

func NewFileHandler(store FileStore) *FileHandler {
	return &FileHandler{store: store}
}

// Upload returns a presigned PUT URL for the object named in the file_name
// header.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Image storage is not configured")
		return
	}

	name, ok := objectName(w, r.Header.Get("file_name"))
	if !ok {
		return
	}
	contentType := r.Header.Get("file_type")
	if contentType == "" {
		contentType = storage.ContentTypeFor(name)
	}

	url, err := h.store.PresignUpload(r.Context(), name, contentType)
	if err != nil {
		log.Error().Err(err).Str("file_name", name).Msg("presign upload")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Download streams an object. Keys never change content once written, so
// responses are cacheable forever.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Image storage is not configured")
		return
	}

	name, ok := objectName(w, r.URL.Query().Get("file_name"))
	if !ok {
		return
	}

	body, contentType, err := h.store.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "File not found")
			return
		}
		log.Error().Err(err).Str("file_name", name).Msg("open object")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", immutableCache)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("file_name", name).Msg("stream object")
	}
}

func objectName(w http.ResponseWriter, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "INVALID_FILE_NAME", "file_name is required")
		return "", false
	}
	return name, true
}
