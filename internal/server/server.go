// Package server provides the HTTP API for intelhub.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/accionlabs/intelhub/internal/archive"
	"github.com/accionlabs/intelhub/internal/catalog"
	"github.com/accionlabs/intelhub/internal/chat"
	"github.com/accionlabs/intelhub/internal/config"
	"github.com/accionlabs/intelhub/internal/digest"
	"github.com/accionlabs/intelhub/internal/markdown"
	"github.com/accionlabs/intelhub/internal/search"
)

// Services are the components the API is built on. All fields are required.
type Services struct {
	Digests  *digest.Service
	Chat     *chat.Service
	Archive  *archive.Archive
	Index    *search.DigestIndex
	Sessions *chat.SessionStore
	Catalog  *catalog.Catalog
}

// Server is the HTTP server for the intelhub API.
type Server struct {
	digests  *digest.Service
	chat     *chat.Service
	archive  *archive.Archive
	index    *search.DigestIndex
	sessions *chat.SessionStore
	catalog  *catalog.Catalog
	markdown *markdown.Renderer

	config *config.Config
	logger *zap.Logger
	server *http.Server

	// inflight coalesces concurrent digest generation for the same company.
	inflight singleflight.Group
}

// NewServer creates a server with the given dependencies.
func NewServer(svc Services, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		digests:  svc.Digests,
		chat:     svc.Chat,
		archive:  svc.Archive,
		index:    svc.Index,
		sessions: svc.Sessions,
		catalog:  svc.Catalog,
		markdown: markdown.NewRenderer(),
		config:   cfg,
		logger:   logger,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	// Routes that wait on the model get the longer generation budget.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.generateTimeout()))
		r.Post("/api/v1/digests", s.handleGenerateDigest)
		r.Get("/api/v1/facts", s.handleFacts)
		r.Post("/api/v1/datasets", s.handleUploadDataset)
		r.Post("/api/v1/sessions/{id}/chat", s.handleSessionChat)
		r.Post("/api/v1/tabs/{name}/chat", s.handleTabChat)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout()))
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/digests", s.handleListDigests)
		r.Get("/api/v1/digests/search", s.handleSearchDigests)
		r.Get("/api/v1/digests/{id}", s.handleGetDigest)
		r.Get("/api/v1/digests/{id}/pdf", s.handleDigestPDF)
		r.Get("/api/v1/sessions/{id}", s.handleGetSession)
		r.Delete("/api/v1/sessions/{id}", s.handleDeleteSession)
		r.Get("/api/v1/tabs", s.handleListTabs)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.RequestTimeoutSeconds > 0 {
		return time.Duration(s.config.Server.RequestTimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

func (s *Server) generateTimeout() time.Duration {
	if s.config.Server.GenerateTimeoutSeconds > 0 {
		return time.Duration(s.config.Server.GenerateTimeoutSeconds) * time.Second
	}
	return 5 * time.Minute
}
