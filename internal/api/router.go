package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/subhodeep2005s/realtime-chat/internal/api/middleware"
	"github.com/subhodeep2005s/realtime-chat/internal/handlers"
)

// Options configure the router beyond the handler dependencies.
type Options struct {
	// RateLimitClient backs the limiter; nil disables rate limiting.
	RateLimitClient *redis.Client
	RateLimit       middleware.RateLimiterConfig
	AllowedOrigin   string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps handlers.Deps, opts Options) *chi.Mux {
	r := chi.NewRouter()
	logger := deps.Logger

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if opts.RateLimitClient != nil {
		if opts.RateLimit.Verifier == nil && deps.Auth != nil {
			opts.RateLimit.Verifier = deps.Auth
		}
		limiter := middleware.NewRateLimiter(opts.RateLimitClient, logger, opts.RateLimit)
		r.Use(limiter.Middleware)
	}

	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		// Cookies cannot be credentialed against a wildcard origin
		AllowCredentials: origin != "*",
		MaxAge:           300,
	}))

	deps.AllowedOrigin = origin
	h := handlers.NewHandler(deps)
	auth := middleware.NewAuthMiddleware(deps.Auth)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/room/create", h.CreateRoom)
		r.Post("/room/join", h.JoinRoom)
		// Verifies its own token so a repeated destroy still succeeds
		r.Delete("/room", h.DestroyRoom)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoomAuth)

			r.Get("/room", h.GetRoom)
			r.Get("/room/ttl", h.RoomTTL)
			r.Post("/messages", h.PostMessage)
			r.Get("/messages", h.GetMessages)
			r.Get("/realtime", h.Realtime)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.Error(w, http.StatusNotFound, "not found")
	})

	return r
}
