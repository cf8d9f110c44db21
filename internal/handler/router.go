package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"phigrate-web/config"
)

// NewRouter はルーターを生成する。
func NewRouter(h *ProjectHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// ルート定義
	r.Route("/v1/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)
		r.Get("/check-config", h.CheckConfig)

		r.Route("/{project_id}", func(r chi.Router) {
			r.Get("/", h.GetProject)
			r.Put("/", h.UpdateProject)
			r.Delete("/", h.DeleteProject)

			r.Get("/migrations", h.ListMigrations)
			r.Get("/migrations/{migration_id}", h.GetMigrationContent)
			r.Post("/migrations/{migration_id}/migrate", h.Migrate)
		})
	})

	if cfg != nil && cfg.OtelEnabled {
		return otelhttp.NewHandler(r, "phigrate-web")
	}
	return r
}
