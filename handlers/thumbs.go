// nexchan/handlers/thumbs.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"nexchan/config"
	"nexchan/models"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// HandleThumbnail is a read-through resizer for stored post images: it
// fetches the object, fits it into the thumbnail box and serves a JPEG.
func HandleThumbnail(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleThumbnail")

	path := chi.URLParam(r, "*")
	if !strings.HasPrefix(path, config.PostsBucket+"/") || strings.Contains(path, "..") {
		respondError(w, r, models.NotFoundf("image not found"), app)
		return
	}

	obj, err := app.Storage().Fetch(r.Context(), config.PostsBucket, path)
	if err != nil {
		respondError(w, r, models.NotFoundf("image not found"), app)
		return
	}
	defer func() {
		if err := obj.Close(); err != nil {
			logger.Error("Failed to close storage object", "path", path, "error", err)
		}
	}()

	img, err := imaging.Decode(obj, imaging.AutoOrientation(true))
	if err != nil {
		logger.Warn("Failed to decode stored image", "path", path, "error", err)
		respondError(w, r, models.NotFoundf("image not found"), app)
		return
	}

	thumb := imaging.Fit(img, config.ThumbnailWidth, config.ThumbnailHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		respondError(w, r, models.StorageError("could not encode thumbnail", err), app)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error("Failed to write thumbnail response", "error", err)
	}
}
