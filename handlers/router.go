// nexchan/handlers/router.go
package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(RequestLogger(app.Logger()))
	mux.Use(middleware.Recoverer)
	mux.Use(IdentityMiddleware(app))

	// Read paths bypass admission control entirely.
	mux.Get("/boards", MakeHandler(app, HandleListBoards))
	mux.Get("/boards/{slug}/threads", MakeHandler(app, HandleBoardThreads))
	mux.Get("/posts/{postID}", MakeHandler(app, HandleGetThread))
	mux.Get("/thumbs/*", MakeHandler(app, HandleThumbnail))

	// Write paths sit behind the transport-level burst filter; the
	// policy-driven admission check happens inside the handlers.
	mux.Group(func(r chi.Router) {
		r.Use(ThrottleWrites(app))
		r.Post("/posts", MakeHandler(app, HandleCreatePost))
		r.Post("/uploads/{bucket}", MakeHandler(app, HandleUploadGrant))
	})

	mux.Delete("/posts/{postID}", MakeHandler(app, HandleDeletePost))

	return mux
}
