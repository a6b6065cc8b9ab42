package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/geto-app/geto/internal/validate"
)

func (s *APIServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.opts.HTTPMetrics != nil {
		r.Use(s.opts.HTTPMetrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool { return s.origins.Allowed(origin) },
		AllowedMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:  []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:          300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/devices", s.handleDevices)
		r.Get("/packages", s.handlePackages)
		r.Route("/packages/{pkg}", func(r chi.Router) {
			r.Use(requireValidPackage)
			r.Get("/entries", s.handleListEntries)
			r.Post("/entries", s.handleAddEntry)
			r.Post("/apply", s.handleApply)
			r.Post("/revert", s.handleRevert)
			r.Post("/autolaunch", s.handleAutoLaunch)
		})
		r.Route("/entries/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetEntry)
			r.Put("/", s.handleUpdateEntry)
			r.Delete("/", s.handleDeleteEntry)
			r.Post("/toggle", s.handleToggleEntry)
		})
		r.Get("/results/{usecase}", s.handleTakeResult)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)
		r.Post("/cleanup", s.handleCleanup)
		r.Get("/templates", s.handleTemplates)
	})

	r.With(requireValidPackage).Get("/ws/packages/{pkg}/entries", s.handleEntryStream)
	return r
}

// requireValidPackage rejects malformed {pkg} path segments before they reach
// adb or the store.
func requireValidPackage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validate.PackageName(packageParam(r)); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
