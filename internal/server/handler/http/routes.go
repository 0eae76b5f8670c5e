package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/middleware"
)

// NewRouter constructs the HTTP handler that serves the scheduling API.
//
// Routes:
//
//	GET  /api/mode-data                  → ModeData
//	POST /api/set-new-flashcards-per-day → SetNewFlashcardsPerDay
//	GET  /api/start-session              → StartSession
//	POST /api/submit-review              → SubmitReview
//	GET  /api/performance-stats          → PerformanceStats
//
// Middleware chain (applied in order):
//  1. RequestID and Recoverer
//  2. WithRequestLogging(logger)
//  3. AllowContentType("application/json") on POST routes
func NewRouter(studyHandler *StudyHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/mode-data", studyHandler.ModeData)
		r.Get("/start-session", studyHandler.StartSession)
		r.Get("/performance-stats", studyHandler.PerformanceStats)

		// Only allow requests with Content-Type: application/json
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/set-new-flashcards-per-day", studyHandler.SetNewFlashcardsPerDay)
			r.Post("/submit-review", studyHandler.SubmitReview)
		})
	})

	return r
}
