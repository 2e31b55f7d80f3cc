package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rolegate/rolegate/internal/storage"
	"github.com/sirupsen/logrus"
)

// AssetHandler serves static files out of object storage.
type AssetHandler struct {
	storage storage.ObjectStorage
	log     logrus.FieldLogger
}

func NewAssetHandler(objects storage.ObjectStorage, log logrus.FieldLogger) *AssetHandler {
	return &AssetHandler{storage: objects, log: log}
}

// AssetRouter mounts GET /static/*.
func AssetRouter(r chi.Router, objects storage.ObjectStorage, log logrus.FieldLogger) {
	h := NewAssetHandler(objects, log)
	r.Get("/static/*", h.Get)
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := storage.CleanKey(chi.URLParam(r, "*"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	obj, err := h.storage.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.WithError(err).WithField("key", key).Error("asset fetch failed")
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeFor(key)
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.log.WithError(err).WithField("key", key).Debug("asset copy interrupted")
	}
}
