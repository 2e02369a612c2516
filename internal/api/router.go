package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/api/handlers"
	"github.com/s-hosono/stamprally/internal/auth"
	"github.com/s-hosono/stamprally/internal/services"
)

// Dependencies are the services the router exposes over HTTP.
type Dependencies struct {
	Environment    string
	AllowedOrigins []string
	SecureCookies  bool
	Tokens         *auth.TokenIssuer
	AuthService    services.AuthServiceProvider
	StampService   services.StampServiceProvider
	EventService   services.EventServiceProvider
	BackupService  services.BackupServiceProvider
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.Environment)
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Tokens, deps.SecureCookies)
	userHandler := handlers.NewUserHandler(deps.AuthService)
	eventHandler := handlers.NewEventHandler(deps.EventService)
	stampHandler := handlers.NewStampHandler(deps.StampService)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Get("/users", userHandler.List)
		r.Get("/events", eventHandler.GetRecent)
		if deps.BackupService != nil {
			r.Get("/backups", handlers.NewBackupHandler(deps.BackupService).GetAll)
		}

		r.Route("/stamps", func(r chi.Router) {
			r.Use(deps.Tokens.Middleware())
			r.Get("/", stampHandler.GetPoints)
			r.Get("/collected", stampHandler.GetCollected)
			r.Get("/progress", stampHandler.GetProgress)
			r.Post("/scan", stampHandler.Scan)
		})
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("HTTP request")
}
