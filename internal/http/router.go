package httpapi

import (
	stdhttp "net/http"

	"asset-pipeline/internal/http/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/items", func(r chi.Router) {
		r.Post("/process", app.ProcessItem)
	})

	r.Route("/v1/batches", func(r chi.Router) {
		r.Post("/process", app.ProcessBatch)
	})

	return r
}
