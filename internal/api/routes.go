package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/veribatch/internal/pkg/httputil"
)

// SetupRoutes configures the full HTTP route tree.
func SetupRoutes(health *HealthChecker, batches *BatchHandlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", batches.HandleCreateUpload)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batches.HandleSubmit)
			r.Get("/", batches.HandleList)
			r.Get("/{id}", batches.HandleStatus)
			r.Post("/{id}/pause", batches.HandlePause)
			r.Post("/{id}/resume", batches.HandleResume)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "not found")
	})

	return r
}
