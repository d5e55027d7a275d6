package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/framestream/internal/api/handler"
	"github.com/hszk-dev/framestream/internal/api/middleware"
	"github.com/hszk-dev/framestream/internal/usecase"
)

// Deps are the services the router exposes.
type Deps struct {
	Media    usecase.MediaService
	Sessions usecase.SessionService
	Ready    map[string]handler.Pinger
	Logger   *slog.Logger
}

// NewRouter builds the HTTP routes of the API server.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	media := handler.NewMediaHandler(deps.Media, logger)
	sessions := handler.NewSessionHandler(deps.Sessions, logger)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(deps.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/media", func(r chi.Router) {
		r.Post("/", media.Create)
		r.Get("/", media.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", media.Get)
			r.Delete("/", media.Delete)
			r.Post("/probe", media.TriggerProbe)

			r.Post("/session", sessions.Open)
			r.Get("/session", sessions.Info)
			r.Delete("/session", sessions.Close)
			r.Post("/session/control", sessions.Control)
			r.Get("/session/frame", sessions.Current)

			r.Get("/frames/{index}", sessions.Frame)
		})
	})

	return r
}
