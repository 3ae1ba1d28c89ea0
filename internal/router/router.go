package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/ceylonroots/tour-admin/docs"
	"github.com/ceylonroots/tour-admin/internal/api/tour"
)

// Config contains dependencies needed for the router setup
type Config struct {
	TourHandler            *tour.TourHandler
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected
// to be applied *before* mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "https://admin.ceylonroots.com"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {

		// --- Public catalogue routes ---
		r.Group(func(r chi.Router) {
			r.Get("/tours", cfg.TourHandler.ListTours)
			r.Get("/tours/{tourID}", cfg.TourHandler.GetTour)
		})

		// --- Admin routes ---
		// Everything that mutates the catalogue requires a valid JWT.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/tours", cfg.TourHandler.CreateTour)
			r.Put("/tours/{tourID}", cfg.TourHandler.UpdateTour)
			r.Delete("/tours/{tourID}", cfg.TourHandler.DeleteTour)
			r.Get("/tours/{tourID}/edit", cfg.TourHandler.OpenEditSession)
		})
	})

	return r
}
