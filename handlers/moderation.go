// nexchan/handlers/moderation.go
package handlers

import (
	"net/http"
	"strconv"

	"nexchan/config"
	"nexchan/models"
	"nexchan/utils"

	"github.com/go-chi/chi/v5"
)

// HandleDeletePost removes a post, or the whole thread when the target is
// an OP. Rows are the durability boundary: they are deleted first, then
// the stored objects are removed best-effort. A storage failure is logged
// and never fails the request.
func HandleDeletePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeletePost")

	ident := IdentityFromContext(r)
	if !canModerate(ident, r, app) {
		logger.Warn("Unprivileged delete attempt", "user_id", ident.UserID, "ip", ident.IP)
		respondError(w, r, models.Forbiddenf("you do not have permission to delete posts"), app)
		return
	}

	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		respondError(w, r, models.Validationf("invalid post ID"), app)
		return
	}

	imagePaths, err := app.DB().DeletePost(postID)
	if err != nil {
		respondError(w, r, err, app)
		return
	}

	for _, path := range imagePaths {
		if err := app.Storage().Remove(r.Context(), config.PostsBucket, path); err != nil {
			// Orphaned object; the rows are already gone.
			logger.Error("Failed to remove stored image after delete", "path", path, "error", err)
		}
	}

	logger.Info("Post deleted", "post_id", postID, "images_removed", len(imagePaths), "moderator", ident.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// canModerate is the capability check for moderation actions: a session
// role with moderation rights, or the operator master key.
func canModerate(ident models.Identity, r *http.Request, app App) bool {
	if ident.Role.CanModerate() {
		return true
	}
	return utils.CheckMasterKey(app.ModKeyHash(), r.Header.Get("X-Master-Key"))
}
