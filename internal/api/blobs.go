package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/findithq/findit/internal/blobstore"
)

// BlobsHandler serves stored images.
type BlobsHandler struct {
	DB *sql.DB
}

// Get handles GET /api/blobs/{id}.
func (h *BlobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, mime, err := blobstore.Load(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to load blob", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
