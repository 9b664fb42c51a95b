package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/admingate/apiserver/config"
	"github.com/admingate/apiserver/internal/db"
	"github.com/admingate/apiserver/internal/handlers"
	"github.com/admingate/apiserver/internal/mailer"
	"github.com/admingate/apiserver/internal/mq"
	"github.com/admingate/apiserver/internal/services"
	"github.com/admingate/apiserver/internal/storage"
	"github.com/admingate/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mqBackend  mq.Backend
	logger     *slog.Logger
}

// New constructs a Server with its full dependency graph: database,
// repositories, mail dispatch, optional broker and object storage.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	adminRepo := store.NewAdminRepository(dbConn)
	adminService := services.NewAdminService(adminRepo)

	mqBackend, err := mq.NewBackend(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	avatars, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if avatars != nil {
		if err := avatars.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	sender := mailer.NewSMTPSender(cfg.Mail)
	dispatcher := mailer.NewDispatcher(sender, mqBackend, cfg.MQ.Channel, logger)

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/admin", func(r chi.Router) {
		handlers.AccountRouter(r, adminService, dispatcher, cfg.Mail.FrontendURL, jwtSecret)
		handlers.ProfileRouter(r, adminService, avatars, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mqBackend:  mqBackend,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown and releases shared resources.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.mqBackend != nil {
		_ = s.mqBackend.Close()
	}
	return s.httpServer.Close()
}
