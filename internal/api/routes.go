package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the HTTP routes with the standard middleware stack.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/submit_action", h.SubmitAction)
		r.Post("/submit_post", h.SubmitPost)
		r.Delete("/delete/{post_id}", h.DeletePost)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/run-daily-analysis", h.RunDailyAnalysis)
		r.Get("/daily-summary", h.DailySummary)
		r.Get("/user-activity/{id}", h.UserActivity)
	})

	r.Get("/api/rewards/{category}", h.Rewards)

	return r
}
