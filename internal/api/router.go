package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig assembles the HTTP router.
type RouterConfig struct {
	Handler        *Handler
	CORSOrigins    []string
	Authenticate   func(http.Handler) http.Handler
	RateLimit      func(http.Handler) http.Handler
	RequestID      func(http.Handler) http.Handler
	RequestLogging func(http.Handler) http.Handler
}

// NewRouter builds the server router: /healthz is public, /v1 requires
// authentication and is rate limited.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	if cfg.RequestID != nil {
		r.Use(cfg.RequestID)
	}
	if cfg.RequestLogging != nil {
		r.Use(cfg.RequestLogging)
	}
	r.Use(chimw.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", Healthz)
	r.Route("/v1", func(r chi.Router) {
		if cfg.Authenticate != nil {
			r.Use(cfg.Authenticate)
		}
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		cfg.Handler.Mount(r)
	})
	return r
}
