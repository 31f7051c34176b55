package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every API route on a chi router
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.MethodNotAllowed(app.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-pair", app.GeneratePair)
		r.Post("/edit-image", app.GeneratePair)
		r.Post("/generate-single", app.GenerateSingle)

		r.Get("/images", app.ListImages)
		r.Get("/image/{type}/{filename}", app.ServeImage)
		r.Post("/upload", app.Upload)
	})

	return r
}
