// Package http provides the HTTP delivery layer of the shortener.
// The root routes speak the compact protocol (POST /new, GET and HEAD on any
// identifier); /api/v1 carries the JSON API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter wires the routes and middleware. website is prepended to issued
// identifiers to form the short URL returned to clients.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, website string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	h := newURLHandler(urlUseCase, validator.New(), website)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", h.shortenURL)
			r.Get("/{shortCode}", h.resolveShortCode)
		})
	})

	r.Post("/new", h.newLink)
	r.Get("/*", h.redirect)
	r.Head("/*", handleHead)

	return r
}
