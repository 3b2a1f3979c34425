package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/roomdrop/internal/api/middleware"
	"github.com/eldtechnologies/roomdrop/internal/handlers"
)

// DefaultMaxBodyBytes is used when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// Options tunes the router.
type Options struct {
	// Limiter rate limits requests. Nil disables rate limiting.
	Limiter      middleware.Limiter
	MaxBodyBytes int64
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, opts Options) *chi.Mux {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBody))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - allow all origins (rooms are shared by code from anywhere).
	// Registered before the limiter so 429 responses stay readable.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}
	r.Use(middleware.Preflight)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/room", func(r chi.Router) {
		r.Post("/create", h.CreateRoom)
		r.Post("/message", h.PostMessage)
		r.Post("/delete-message", h.DeleteMessage)
		r.Post("/delete", h.DeleteRoom)
		r.Get("/{id}", h.GetRoom)
	})

	r.Get("/upload/token", h.UploadToken)
	r.Post("/upload/token", h.UploadToken)

	return r
}
