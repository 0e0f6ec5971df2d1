// nexchan/handlers/uploads.go
package handlers

import (
	"encoding/json"
	"net/http"

	"nexchan/config"
	"nexchan/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type uploadGrantRequest struct {
	FileType string `json:"fileType"`
}

// HandleUploadGrant issues a single-use signed upload URL. The posts
// bucket is anonymous-writable under a fresh random path; the avatars
// bucket is authenticated-only with the path fixed to the user's id, so a
// re-upload overwrites the previous avatar.
func HandleUploadGrant(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUploadGrant")

	bucket := chi.URLParam(r, "bucket")
	var req uploadGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, models.Validationf("malformed request body"), app)
		return
	}

	ident := IdentityFromContext(r)
	var path string
	switch bucket {
	case config.PostsBucket:
		if !config.PostUploadTypes[req.FileType] {
			respondError(w, r, models.Validationf("file type %q is not allowed", req.FileType), app)
			return
		}
		path = config.PostsBucket + "/" + uuid.NewString()
	case config.AvatarsBucket:
		if ident.IsAnonymous() {
			respondError(w, r, models.Forbiddenf("avatar uploads require authentication"), app)
			return
		}
		if !config.AvatarUploadTypes[req.FileType] {
			respondError(w, r, models.Validationf("file type %q is not allowed", req.FileType), app)
			return
		}
		if err := app.DB().CheckAdmission(ident, config.ActionAvatarUpload); err != nil {
			respondError(w, r, err, app)
			return
		}
		path = config.AvatarsBucket + "/" + ident.UserID
	default:
		respondError(w, r, models.NotFoundf("bucket %q not found", bucket), app)
		return
	}

	signedURL, err := app.Storage().PresignedUpload(r.Context(), bucket, path, config.UploadGrantTTL)
	if err != nil {
		respondError(w, r, models.StorageError("could not create signed upload URL", err), app)
		return
	}

	if bucket == config.AvatarsBucket {
		if err := app.DB().LogAction(ident, config.ActionAvatarUpload); err != nil {
			logger.Error("Failed to log avatar upload action", "error", err)
		}
	}

	respondJSON(w, http.StatusOK, models.UploadGrant{
		Path:            path,
		SignedUploadURL: signedURL,
		ExpiresIn:       int(config.UploadGrantTTL.Seconds()),
		RequiredHeaders: map[string]string{"Content-Type": req.FileType},
	}, app)
}
