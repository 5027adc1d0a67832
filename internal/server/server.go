package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hongminglow/points-ledger/internal/auth"
	"github.com/hongminglow/points-ledger/internal/config"
	"github.com/hongminglow/points-ledger/internal/http/handlers"
	"github.com/hongminglow/points-ledger/internal/ledger"
	"github.com/hongminglow/points-ledger/internal/middleware"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.LedgerStore, svc *ledger.Service, logger *slog.Logger) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, store, svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Payouts wait on the bank collaborator.
		WriteTimeout: cfg.PayoutTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// NewRouter builds the route tree: public health and identity routes,
// bearer-authenticated ledger routes and key-guarded admin routes.
func NewRouter(cfg config.Config, store storage.LedgerStore, svc *ledger.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	handlers.NewHealthHandler(time.Now(), store).Register(r)
	handlers.NewAuthHandler(store, tokenManager, logger).Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokenManager))
		handlers.NewLedgerHandler(svc, logger).Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminKey(cfg.AdminAPIKey))
		handlers.NewAdminHandler(svc, logger).Register(r)
	})

	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
