package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/txtreader/internal/api/middleware"
)

// NewRouter creates the application router with all routes and middleware.
func NewRouter(handler *ReaderHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", handler.Status)
		r.Get("/tasks", handler.History)

		r.Post("/load", handler.Load)
		r.Post("/sniff", handler.Sniff)
		r.Post("/search", handler.Search)

		r.Get("/lines", handler.Lines)
		r.Post("/lines/ranges", handler.Ranges)
		r.Post("/lines/sporadic", handler.Sporadic)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
