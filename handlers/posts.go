// nexchan/handlers/posts.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"nexchan/config"
	"nexchan/database"
	"nexchan/models"

	"github.com/go-chi/chi/v5"
)

type createPostRequest struct {
	BoardSlug string `json:"boardSlug"`
	ThreadID  int64  `json:"threadId"`
	Subject   string `json:"subject"`
	Comment   string `json:"comment"`
	ImagePath string `json:"imagePath"`
}

// HandleCreatePost is the write path for new threads and replies. The
// request passes admission control first; the action is logged for future
// admission checks only after the post actually lands.
func HandleCreatePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreatePost")

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, models.Validationf("malformed request body"), app)
		return
	}
	if len(req.Subject) > config.MaxSubjectLen {
		respondError(w, r, models.Validationf("subject exceeds %d characters", config.MaxSubjectLen), app)
		return
	}
	if len(req.Comment) > config.MaxCommentLen {
		respondError(w, r, models.Validationf("comment exceeds %d characters", config.MaxCommentLen), app)
		return
	}

	ident := IdentityFromContext(r)
	actionType := config.ActionAnonCreatePost
	if !ident.IsAnonymous() {
		actionType = config.ActionAuthCreatePost
	}

	if err := app.DB().CheckAdmission(ident, actionType); err != nil {
		respondError(w, r, err, app)
		return
	}

	post, err := app.DB().CreatePost(database.CreatePostArgs{
		BoardSlug: req.BoardSlug,
		ThreadID:  req.ThreadID,
		Subject:   req.Subject,
		Comment:   req.Comment,
		ImagePath: req.ImagePath,
		Identity:  ident,
	})
	if err != nil {
		respondError(w, r, err, app)
		return
	}

	if err := app.DB().LogAction(ident, actionType); err != nil {
		// The post is already committed; losing one audit row only makes
		// the sliding window slightly more permissive.
		logger.Error("Failed to log action after post creation", "error", err)
	}

	resolvePostImage(post, app)
	logger.Info("New post created", "post_id", post.ID, "board_id", post.BoardID, "thread_id", post.ThreadID)
	respondJSON(w, http.StatusCreated, post, app)
}

// HandleGetThread serves the full-thread read view.
func HandleGetThread(w http.ResponseWriter, r *http.Request, app App) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		respondError(w, r, models.Validationf("invalid post ID"), app)
		return
	}
	page := queryInt(r, "page", 1, 1<<30)
	limit := queryInt(r, "replies_limit", config.DefaultRepliesLimit, config.MaxRepliesLimit)

	thread, err := app.DB().GetThread(postID, page, limit)
	if err != nil {
		respondError(w, r, err, app)
		return
	}

	resolvePostImage(&thread.Op, app)
	for i := range thread.Replies {
		resolvePostImage(&thread.Replies[i], app)
	}
	resolveProfileAvatars(thread.Users, app)

	respondJSON(w, http.StatusOK, thread, app)
}

// resolvePostImage turns the stored image path into a publicly fetchable
// URL. The raw path itself is never serialized.
func resolvePostImage(p *models.Post, app App) {
	if p.ImagePath != "" {
		p.ImageURL = app.Storage().PublicURL(config.PostsBucket, p.ImagePath)
	}
}

func resolveProfileAvatars(users map[string]models.UserProfile, app App) {
	for id, profile := range users {
		if profile.AvatarPath != "" {
			profile.AvatarURL = app.Storage().PublicURL(config.AvatarsBucket, profile.AvatarPath)
			users[id] = profile
		}
	}
}
