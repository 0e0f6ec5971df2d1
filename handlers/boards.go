// nexchan/handlers/boards.go
package handlers

import (
	"net/http"

	"nexchan/config"

	"github.com/go-chi/chi/v5"
)

// HandleListBoards returns all boards. Board administration is external;
// this core only reads them.
func HandleListBoards(w http.ResponseWriter, r *http.Request, app App) {
	boards, err := app.DB().ListBoards()
	if err != nil {
		respondError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, boards, app)
}

// HandleBoardThreads serves the paginated board preview list.
func HandleBoardThreads(w http.ResponseWriter, r *http.Request, app App) {
	slug := chi.URLParam(r, "slug")
	page := queryInt(r, "page", 1, 1<<30)
	limit := queryInt(r, "limit", config.DefaultBoardPageLimit, config.MaxBoardPageLimit)

	boardPage, err := app.DB().GetBoardThreads(slug, page, limit)
	if err != nil {
		respondError(w, r, err, app)
		return
	}

	for i := range boardPage.Data {
		t := &boardPage.Data[i]
		resolvePostImage(&t.Op, app)
		for j := range t.LatestReplies {
			resolvePostImage(&t.LatestReplies[j], app)
		}
		resolveProfileAvatars(t.Users, app)
	}

	respondJSON(w, http.StatusOK, boardPage, app)
}
