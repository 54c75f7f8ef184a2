// Package httpapi exposes the directory operations over HTTP. Handlers
// are thin: they translate requests into directory-service calls and
// map the service's error taxonomy onto status codes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/logging"
	"github.com/workdeck/workdeck/internal/server/config"
	"github.com/workdeck/workdeck/internal/server/directory"
	"github.com/workdeck/workdeck/internal/server/models"
	"github.com/workdeck/workdeck/internal/server/notify"
	"github.com/workdeck/workdeck/internal/server/repositories/repomanager"
)

type Server struct {
	addr     string
	db       *sql.DB
	repos    repomanager.RepositoryManager
	notifier notify.Notifier
	cfg      *config.Config
	logger   logging.Logger
}

func NewServer(db *sql.DB, repos repomanager.RepositoryManager, notifier notify.Notifier,
	cfg *config.Config, l logging.Logger) *Server {
	return &Server{
		addr:     cfg.EndpointAddrHTTP,
		db:       db,
		repos:    repos,
		notifier: notifier,
		cfg:      cfg,
		logger:   l.With("module", "http_server"),
	}
}

// directoryFor builds a request-scoped directory service over the given
// session handle, bound to the authenticated caller (if any).
func (s *Server) directoryFor(ctx context.Context, session dbx.DBTX) *directory.Service {
	current, _ := ctx.Value(currentUserKey).(*models.User)
	return directory.NewService(session, s.repos, s.notifier, s.cfg, s.logger, current)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Post("/api/v1/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/v1/users", s.handleListUsers)
		r.Post("/api/v1/users", s.handleCreateUser)
		r.Get("/api/v1/users/me", s.handleCurrentUser)
		r.Get("/api/v1/users/{id}", s.handleGetUser)
		r.Put("/api/v1/users/{id}", s.handleUpdateUser)
	})

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
